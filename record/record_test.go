package record_test

import (
	"time"

	. "github.com/dogmatiq/troupe/record"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Record", func() {
	var rec *Record

	BeforeEach(func() {
		rec = &Record{
			ID:        "<id>",
			RuntimeID: "<runtime>",
			CreatedAt: time.Now(),
			Type:      CommandType,
		}
	})

	Describe("func ScheduledAt()", func() {
		It("returns the creation time by default", func() {
			Expect(rec.ScheduledAt()).To(BeTemporally("==", rec.CreatedAt))
		})

		It("returns the scheduled time if it is in the future of the creation time", func() {
			rec.Meta.ScheduledFor = rec.CreatedAt.Add(10 * time.Second)

			Expect(rec.ScheduledAt()).To(BeTemporally("==", rec.Meta.ScheduledFor))
		})

		It("ignores a scheduled time that predates the creation time", func() {
			rec.Meta.ScheduledFor = rec.CreatedAt.Add(-10 * time.Second)

			Expect(rec.ScheduledAt()).To(BeTemporally("==", rec.CreatedAt))
		})
	})

	Describe("func ExpiresAt()", func() {
		It("reports that the record never expires by default", func() {
			_, ok := rec.ExpiresAt()
			Expect(ok).To(BeFalse())
		})

		It("returns the expiry time if a time-to-live is set", func() {
			rec.Meta.Timeout = 3 * time.Second

			t, ok := rec.ExpiresAt()
			Expect(ok).To(BeTrue())
			Expect(t).To(BeTemporally("==", rec.CreatedAt.Add(3*time.Second)))
		})
	})

	Describe("func Validate()", func() {
		It("returns nil if the record is valid", func() {
			Expect(rec.Validate()).ShouldNot(HaveOccurred())
		})

		DescribeTable(
			"it returns an error if the record is invalid",
			func(setup func(), expect string) {
				setup()
				Expect(rec.Validate()).To(MatchError(expect))
			},
			Entry("empty ID", func() {
				rec.ID = ""
			}, "record ID must not be empty"),
			Entry("empty runtime ID", func() {
				rec.RuntimeID = ""
			}, "runtime ID must not be empty"),
			Entry("zero creation time", func() {
				rec.CreatedAt = time.Time{}
			}, "created-at time must not be zero"),
			Entry("unrecognized type", func() {
				rec.Type = Type(100)
			}, "unrecognized record type (100)"),
			Entry("negative timeout", func() {
				rec.Meta.Timeout = -1
			}, "timeout must not be negative"),
			Entry("unrecognized priority", func() {
				rec.Meta.Priority = Priority(100)
			}, "unrecognized priority (100)"),
		)
	})
})
