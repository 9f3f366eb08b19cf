package storetest

import (
	"context"
	"time"

	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/troupe/fixtures"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareCursorTests(
	ctx *context.Context,
	in *In,
	out *Out,
) {
	ginkgo.Describe("type Cursor (interface)", func() {
		var (
			provider      store.Provider
			closeProvider func()
			activities    store.Store

			now = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

			rec0 = fixtures.NewRecord("<record-0>", record.CommandType, []byte("<payload-0>"), now)
			rec1 = fixtures.NewRecord("<record-1>", record.EventType, []byte("<payload-1>"), now.Add(1*time.Second))
			rec2 = fixtures.NewRecord("<record-2>", record.QueryType, []byte("<payload-2>"), now.Add(2*time.Second))
		)

		// Use a second runtime identity to test the runtime ID filtering.
		rec1.RuntimeID = "<runtime-2>"
		rec1.Meta.Source = "<runtime-2>"

		ginkgo.BeforeEach(func() {
			provider, closeProvider = out.NewProvider()

			var err error
			activities, err = provider.Open(*ctx)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
		})

		ginkgo.AfterEach(func() {
			if activities != nil {
				activities.Close()
			}

			if closeProvider != nil {
				closeProvider()
			}
		})

		ginkgo.Describe("func Next()", func() {
			ginkgo.It("returns records that were appended before the cursor was opened", func() {
				err := activities.Append(*ctx, rec0, rec1, rec2)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				cur, err := activities.Open(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer cur.Close()

				rec, err := cur.Next(*ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(rec).To(gomega.Equal(persisted(rec0)))

				rec, err = cur.Next(*ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(rec).To(gomega.Equal(persisted(rec1)))
			})

			ginkgo.It("returns records that are appended after the cursor is opened", func() {
				rec := in.Packer.PackCommand(fixtures.DefaultRuntimeID, []byte("<payload>"))

				go func() {
					defer ginkgo.GinkgoRecover()

					linger.Sleep(*ctx, out.AssumeBlockingDuration)

					err := activities.Append(*ctx, rec)
					gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				}()

				cur, err := activities.Open(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer cur.Close()

				got, err := cur.Next(*ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(got).To(gomega.Equal(persisted(rec)))
			})

			ginkgo.It("skips records that do not match the query", func() {
				err := activities.Append(*ctx, rec0, rec1, rec2)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				cur, err := activities.Open(
					*ctx,
					store.Query{
						RuntimeID: fixtures.DefaultRuntimeID,
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer cur.Close()

				rec, err := cur.Next(*ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(rec).To(gomega.Equal(persisted(rec0)))

				rec, err = cur.Next(*ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(rec).To(gomega.Equal(persisted(rec2)))
			})

			ginkgo.It("starts from the given offset", func() {
				err := activities.Append(*ctx, rec0, rec1, rec2)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				cur, err := activities.Open(
					*ctx,
					store.Query{
						FromOffset: 1,
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer cur.Close()

				rec, err := cur.Next(*ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(rec).To(gomega.Equal(persisted(rec1)))
			})

			ginkgo.It("evaluates the synchronization status when the record is reached", func() {
				err := activities.Append(*ctx, rec0)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = activities.SetSyncStatus(*ctx, store.Synced, "<record-0>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				cur, err := activities.Open(
					*ctx,
					store.Query{
						SyncStatus: store.Synced,
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer cur.Close()

				rec, err := cur.Next(*ctx)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(rec).To(gomega.Equal(persisted(rec0)))
			})

			ginkgo.It("blocks until the deadline is exceeded if no records match", func() {
				cur, err := activities.Open(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer cur.Close()

				nextCtx, cancel := context.WithTimeout(*ctx, out.AssumeBlockingDuration)
				defer cancel()

				_, err = cur.Next(nextCtx)
				gomega.Expect(err).To(gomega.Equal(context.DeadlineExceeded))
			})

			ginkgo.It("returns an error if the store is closed while blocked", func() {
				cur, err := activities.Open(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer cur.Close()

				go func() {
					defer ginkgo.GinkgoRecover()

					linger.Sleep(*ctx, out.AssumeBlockingDuration)

					activities.Close()
				}()

				_, err = cur.Next(*ctx)
				gomega.Expect(err).To(gomega.Equal(store.ErrStoreClosed))
			})
		})

		ginkgo.Describe("func Close()", func() {
			ginkgo.It("returns an error if the cursor is already closed", func() {
				cur, err := activities.Open(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = cur.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = cur.Close()
				gomega.Expect(err).To(gomega.Equal(store.ErrCursorClosed))
			})

			ginkgo.It("causes a pending call to Next() to fail", func() {
				cur, err := activities.Open(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				go func() {
					defer ginkgo.GinkgoRecover()

					linger.Sleep(*ctx, out.AssumeBlockingDuration)

					cur.Close()
				}()

				_, err = cur.Next(*ctx)
				gomega.Expect(err).To(gomega.Equal(store.ErrCursorClosed))
			})

			ginkgo.It("causes subsequent calls to Next() to fail", func() {
				cur, err := activities.Open(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = cur.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				_, err = cur.Next(*ctx)
				gomega.Expect(err).To(gomega.Equal(store.ErrCursorClosed))
			})
		})
	})
}
