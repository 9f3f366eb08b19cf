package troupe

import (
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/troupe/fixtures"
	"github.com/dogmatiq/troupe/mailbox"
	"github.com/dogmatiq/troupe/subscription"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func resolveOptions()", func() {
	It("populates unspecified options with defaults", func() {
		opts := resolveOptions()

		Expect(opts.StoreProvider).To(BeIdenticalTo(DefaultStoreProvider))
		Expect(opts.MailboxCapacity).To(BeZero())
		Expect(opts.OverflowPolicy).To(Equal(mailbox.Block))
		Expect(opts.MessageTimeout).To(Equal(DefaultMessageTimeout))
		Expect(opts.TerminationGracePeriod).To(Equal(DefaultTerminationGracePeriod))
		Expect(opts.ConcurrencyLimit).To(Equal(DefaultConcurrencyLimit))
		Expect(opts.SubscriptionPolicy).To(Equal(subscription.DropOldest))
		Expect(opts.Logger).To(BeIdenticalTo(DefaultLogger))
	})

	Describe("func WithStoreProvider()", func() {
		It("sets the store provider", func() {
			p := &fixtures.ProviderStub{}

			opts := resolveOptions(WithStoreProvider(p))
			Expect(opts.StoreProvider).To(BeIdenticalTo(p))
		})
	})

	Describe("func WithMailboxCapacity()", func() {
		It("sets the mailbox capacity", func() {
			opts := resolveOptions(WithMailboxCapacity(25))
			Expect(opts.MailboxCapacity).To(Equal(25))
		})
	})

	Describe("func WithOverflowPolicy()", func() {
		It("sets the overflow policy", func() {
			opts := resolveOptions(WithOverflowPolicy(mailbox.Reject))
			Expect(opts.OverflowPolicy).To(Equal(mailbox.Reject))
		})
	})

	Describe("func WithMessageTimeout()", func() {
		It("sets the message timeout", func() {
			opts := resolveOptions(WithMessageTimeout(10 * time.Second))
			Expect(opts.MessageTimeout).To(Equal(10 * time.Second))
		})

		It("panics if the duration is negative", func() {
			Expect(func() {
				WithMessageTimeout(-1)
			}).To(Panic())
		})
	})

	Describe("func WithTerminationGracePeriod()", func() {
		It("sets the grace period", func() {
			opts := resolveOptions(WithTerminationGracePeriod(1 * time.Second))
			Expect(opts.TerminationGracePeriod).To(Equal(1 * time.Second))
		})

		It("panics if the duration is negative", func() {
			Expect(func() {
				WithTerminationGracePeriod(-1)
			}).To(Panic())
		})
	})

	Describe("func WithConcurrencyLimit()", func() {
		It("sets the concurrency limit", func() {
			opts := resolveOptions(WithConcurrencyLimit(8))
			Expect(opts.ConcurrencyLimit).To(BeEquivalentTo(8))
		})
	})

	Describe("func WithSubscriptionBufferSize()", func() {
		It("sets the subscription buffer size", func() {
			opts := resolveOptions(WithSubscriptionBufferSize(16))
			Expect(opts.SubscriptionBufferSize).To(Equal(16))
		})
	})

	Describe("func WithSubscriptionOverflowPolicy()", func() {
		It("sets the subscription overflow policy", func() {
			opts := resolveOptions(
				WithSubscriptionOverflowPolicy(subscription.Disconnect),
			)
			Expect(opts.SubscriptionPolicy).To(Equal(subscription.Disconnect))
		})
	})

	Describe("func WithLogger()", func() {
		It("sets the logger", func() {
			l := &logging.BufferedLogger{}

			opts := resolveOptions(WithLogger(l))
			Expect(opts.Logger).To(BeIdenticalTo(l))
		})
	})
})
