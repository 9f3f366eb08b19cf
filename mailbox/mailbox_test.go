package mailbox_test

import (
	"context"
	"time"

	. "github.com/dogmatiq/troupe/mailbox"
	"github.com/dogmatiq/troupe/record"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Mailbox", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		packer *record.Packer
		mb     *Mailbox
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 1*time.Second)

		packer = &record.Packer{}
		mb = New(3, Block)
	})

	AfterEach(func() {
		mb.Close()
		cancel()
	})

	Describe("func Get()", func() {
		It("delivers records in priority order, then in arrival order", func() {
			normal1 := packer.PackCommand("<target>", []byte("normal-1"))
			normal2 := packer.PackCommand("<target>", []byte("normal-2"))
			high := packer.PackCommand("<target>", []byte("high"))
			high.Meta.Priority = record.High

			Expect(mb.Put(ctx, normal1)).ShouldNot(HaveOccurred())
			Expect(mb.Put(ctx, normal2)).ShouldNot(HaveOccurred())
			Expect(mb.Put(ctx, high)).ShouldNot(HaveOccurred())

			expectNext(ctx, mb, high)
			expectNext(ctx, mb, normal1)
			expectNext(ctx, mb, normal2)
		})

		It("delivers background records last", func() {
			bg := packer.PackCommand("<target>", nil)
			bg.Meta.Priority = record.Background
			low := packer.PackCommand("<target>", nil)
			low.Meta.Priority = record.Low

			Expect(mb.Put(ctx, bg)).ShouldNot(HaveOccurred())
			Expect(mb.Put(ctx, low)).ShouldNot(HaveOccurred())

			expectNext(ctx, mb, low)
			expectNext(ctx, mb, bg)
		})

		It("blocks until a record is put", func() {
			rec := packer.PackCommand("<target>", nil)

			go func() {
				defer GinkgoRecover()
				time.Sleep(50 * time.Millisecond)
				Expect(mb.Put(ctx, rec)).ShouldNot(HaveOccurred())
			}()

			expectNext(ctx, mb, rec)
		})

		It("returns an error if the context deadline is exceeded", func() {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
			defer cancel()

			_, _, err := mb.Get(ctx)
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		When("a record is scheduled for the future", func() {
			It("withholds the record until it falls due", func() {
				rec := packer.PackCommand("<target>", nil)
				due := time.Now().Add(20 * time.Millisecond)
				rec.Meta.ScheduledFor = due

				Expect(mb.Put(ctx, rec)).ShouldNot(HaveOccurred())

				expectNext(ctx, mb, rec)
				Expect(time.Now()).To(BeTemporally(">=", due))
			})

			It("delivers a due record ahead of a higher-priority record that is not yet due", func() {
				high := packer.PackCommand("<target>", nil)
				high.Meta.Priority = record.High
				high.Meta.ScheduledFor = time.Now().Add(250 * time.Millisecond)

				normal := packer.PackCommand("<target>", nil)

				Expect(mb.Put(ctx, high)).ShouldNot(HaveOccurred())
				Expect(mb.Put(ctx, normal)).ShouldNot(HaveOccurred())

				expectNext(ctx, mb, normal)
			})
		})

		When("a record has a time-to-live", func() {
			It("delivers the record as expired once its time-to-live elapses", func() {
				rec := packer.PackCommand("<target>", nil)
				rec.Meta.Timeout = 10 * time.Millisecond
				rec.Meta.ScheduledFor = time.Now().Add(1 * time.Hour)

				Expect(mb.Put(ctx, rec)).ShouldNot(HaveOccurred())

				got, expired, err := mb.Get(ctx)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(got).To(BeIdenticalTo(rec))
				Expect(expired).To(BeTrue())
			})

			It("delivers the record normally if it is dequeued in time", func() {
				rec := packer.PackCommand("<target>", nil)
				rec.Meta.Timeout = 1 * time.Hour

				Expect(mb.Put(ctx, rec)).ShouldNot(HaveOccurred())

				expectNext(ctx, mb, rec)
			})
		})
	})

	Describe("func Put()", func() {
		When("the overflow policy is Block", func() {
			It("blocks until room becomes available", func() {
				for i := 0; i < 3; i++ {
					rec := packer.PackCommand("<target>", nil)
					Expect(mb.Put(ctx, rec)).ShouldNot(HaveOccurred())
				}

				go func() {
					defer GinkgoRecover()
					time.Sleep(50 * time.Millisecond)
					_, _, err := mb.Get(ctx)
					Expect(err).ShouldNot(HaveOccurred())
				}()

				overflow := packer.PackCommand("<target>", nil)
				Expect(mb.Put(ctx, overflow)).ShouldNot(HaveOccurred())
			})

			It("returns an error if the context deadline is exceeded while blocked", func() {
				for i := 0; i < 3; i++ {
					rec := packer.PackCommand("<target>", nil)
					Expect(mb.Put(ctx, rec)).ShouldNot(HaveOccurred())
				}

				ctx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
				defer cancel()

				err := mb.Put(ctx, packer.PackCommand("<target>", nil))
				Expect(err).To(Equal(context.DeadlineExceeded))
			})
		})

		When("the overflow policy is Reject", func() {
			BeforeEach(func() {
				mb = New(1, Reject)
			})

			It("fails immediately when the mailbox is at capacity", func() {
				Expect(mb.Put(ctx, packer.PackCommand("<target>", nil))).ShouldNot(HaveOccurred())

				err := mb.Put(ctx, packer.PackCommand("<target>", nil))
				Expect(err).To(Equal(FullError{Capacity: 1}))
				Expect(err.Error()).To(Equal("mailbox is full (capacity is 1)"))
			})
		})
	})

	Describe("func Len()", func() {
		It("returns the number of queued records", func() {
			Expect(mb.Len()).To(Equal(0))

			Expect(mb.Put(ctx, packer.PackCommand("<target>", nil))).ShouldNot(HaveOccurred())
			Expect(mb.Len()).To(Equal(1))

			_, _, err := mb.Get(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(mb.Len()).To(Equal(0))
		})
	})

	Describe("func Close()", func() {
		It("causes Put() and Get() to fail with ErrClosed", func() {
			mb.Close()

			err := mb.Put(ctx, packer.PackCommand("<target>", nil))
			Expect(err).To(Equal(ErrClosed))

			_, _, err = mb.Get(ctx)
			Expect(err).To(Equal(ErrClosed))
		})

		It("wakes a blocked Get() call", func() {
			go func() {
				time.Sleep(50 * time.Millisecond)
				mb.Close()
			}()

			_, _, err := mb.Get(ctx)
			Expect(err).To(Equal(ErrClosed))
		})

		It("wakes a blocked Put() call", func() {
			for i := 0; i < 3; i++ {
				rec := packer.PackCommand("<target>", nil)
				Expect(mb.Put(ctx, rec)).ShouldNot(HaveOccurred())
			}

			go func() {
				time.Sleep(50 * time.Millisecond)
				mb.Close()
			}()

			err := mb.Put(ctx, packer.PackCommand("<target>", nil))
			Expect(err).To(Equal(ErrClosed))
		})

		It("is idempotent", func() {
			mb.Close()
			mb.Close()
		})
	})
})

// expectNext asserts that the next record delivered by mb is rec, and that
// it is not expired.
func expectNext(
	ctx context.Context,
	mb *Mailbox,
	rec *record.Record,
) {
	GinkgoHelper()

	got, expired, err := mb.Get(ctx)
	Expect(err).ShouldNot(HaveOccurred())
	Expect(got).To(BeIdenticalTo(rec))
	Expect(expired).To(BeFalse())
}
