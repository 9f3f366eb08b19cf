package storetest

import (
	"context"
	"time"

	"github.com/dogmatiq/troupe/fixtures"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareStoreTests(
	ctx *context.Context,
	in *In,
	out *Out,
) {
	ginkgo.Describe("type Store (interface)", func() {
		var (
			provider      store.Provider
			closeProvider func()
			activities    store.Store

			now = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

			rec0 = fixtures.NewRecord("<record-0>", record.CommandType, []byte("<payload-0>"), now)
			rec1 = fixtures.NewRecord("<record-1>", record.EventType, []byte("<payload-1>"), now.Add(1*time.Second))
			rec2 = fixtures.NewRecord("<record-2>", record.QueryType, []byte("<payload-2>"), now.Add(2*time.Second))
			rec3 = fixtures.NewRecord("<record-3>", record.ResponseType, []byte("<payload-3>"), now.Add(3*time.Second))
			rec4 = fixtures.NewRecord("<record-4>", record.ErrorType, []byte("<payload-4>"), now.Add(4*time.Second))
		)

		// Use a second runtime identity to test the runtime ID filtering.
		rec1.RuntimeID = "<runtime-2>"
		rec1.Meta.Source = "<runtime-2>"

		rec3.RuntimeID = "<runtime-2>"
		rec3.Meta.Source = "<runtime-2>"

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

		ginkgo.Describe("func Append()", func() {
			ginkgo.It("makes the records available to Query()", func() {
				err := activities.Append(*ctx, rec0, rec1)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				recs, err := activities.Query(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.Equal(
					[]*record.Record{
						persisted(rec0),
						persisted(rec1),
					},
				))
			})

			ginkgo.It("marks the records as local-only", func() {
				err := activities.Append(*ctx, rec0)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				recs, err := activities.Query(
					*ctx,
					store.Query{
						SyncStatus: store.LocalOnly,
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.Equal(
					[]*record.Record{
						persisted(rec0),
					},
				))
			})

			ginkgo.It("does not modify the original records", func() {
				err := activities.Append(*ctx, rec0)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				gomega.Expect(rec0.Meta.Persistent).To(gomega.BeFalse())
			})

			ginkgo.It("returns an error if a record ID is already in use", func() {
				err := activities.Append(*ctx, rec0)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = activities.Append(*ctx, rec0)
				gomega.Expect(err).To(gomega.Equal(
					store.DuplicateIDError{ID: "<record-0>"},
				))
			})

			ginkgo.It("does not append any records if the batch contains a known ID", func() {
				err := activities.Append(*ctx, rec0)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = activities.Append(*ctx, rec1, rec0)
				gomega.Expect(err).To(gomega.HaveOccurred())

				recs, err := activities.Query(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.Equal(
					[]*record.Record{
						persisted(rec0),
					},
				))
			})

			ginkgo.It("does not append any records if the batch contains the same ID twice", func() {
				err := activities.Append(*ctx, rec0, rec0)
				gomega.Expect(err).To(gomega.Equal(
					store.DuplicateIDError{ID: "<record-0>"},
				))

				recs, err := activities.Query(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.BeEmpty())
			})

			ginkgo.It("returns an error if a record is invalid", func() {
				rec := fixtures.NewRecord("", record.CommandType, nil)
				rec.RuntimeID = ""

				err := activities.Append(*ctx, rec)
				gomega.Expect(err).To(gomega.MatchError("runtime ID must not be empty"))
			})
		})

		ginkgo.Describe("func Query()", func() {
			ginkgo.It("returns the records in order of creation", func() {
				err := activities.Append(*ctx, rec2, rec0, rec1)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				recs, err := activities.Query(*ctx, store.Query{})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.Equal(
					[]*record.Record{
						persisted(rec0),
						persisted(rec1),
						persisted(rec2),
					},
				))
			})

			ginkgo.It("returns only the records of the given runtime", func() {
				err := activities.Append(*ctx, rec0, rec1, rec2, rec3)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				recs, err := activities.Query(
					*ctx,
					store.Query{
						RuntimeID: "<runtime-2>",
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.Equal(
					[]*record.Record{
						persisted(rec1),
						persisted(rec3),
					},
				))
			})

			ginkgo.It("returns only the records created within the given time range", func() {
				err := activities.Append(*ctx, rec0, rec1, rec2, rec3, rec4)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				recs, err := activities.Query(
					*ctx,
					store.Query{
						From: now.Add(1 * time.Second),
						To:   now.Add(3 * time.Second),
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.Equal(
					[]*record.Record{
						persisted(rec1),
						persisted(rec2),
					},
				))
			})

			ginkgo.It("returns only the records created at or after the from time", func() {
				err := activities.Append(*ctx, rec0, rec1, rec2, rec3, rec4)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				recs, err := activities.Query(
					*ctx,
					store.Query{
						From: now.Add(3 * time.Second),
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.Equal(
					[]*record.Record{
						persisted(rec3),
						persisted(rec4),
					},
				))
			})

			ginkgo.It("returns only the records created before the to time", func() {
				err := activities.Append(*ctx, rec0, rec1, rec2, rec3, rec4)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				recs, err := activities.Query(
					*ctx,
					store.Query{
						To: now.Add(2 * time.Second),
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.Equal(
					[]*record.Record{
						persisted(rec0),
						persisted(rec1),
					},
				))
			})

			ginkgo.It("returns only the records with the given synchronization status", func() {
				err := activities.Append(*ctx, rec0, rec1)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = activities.SetSyncStatus(*ctx, store.Synced, "<record-1>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				recs, err := activities.Query(
					*ctx,
					store.Query{
						SyncStatus: store.Synced,
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.Equal(
					[]*record.Record{
						persisted(rec1),
					},
				))
			})

			ginkgo.It("returns an empty result if no records match", func() {
				recs, err := activities.Query(
					*ctx,
					store.Query{
						RuntimeID: "<unknown>",
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.BeEmpty())
			})
		})

		ginkgo.Describe("func SetSyncStatus()", func() {
			ginkgo.It("updates the status of the records with the given IDs", func() {
				err := activities.Append(*ctx, rec0, rec1, rec2)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = activities.SetSyncStatus(*ctx, store.SyncPending, "<record-0>", "<record-2>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				recs, err := activities.Query(
					*ctx,
					store.Query{
						SyncStatus: store.SyncPending,
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.Equal(
					[]*record.Record{
						persisted(rec0),
						persisted(rec2),
					},
				))
			})

			ginkgo.It("returns an error if any of the IDs is unknown", func() {
				err := activities.Append(*ctx, rec0)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = activities.SetSyncStatus(*ctx, store.Synced, "<record-0>", "<unknown>")
				gomega.Expect(err).To(gomega.Equal(
					store.UnknownRecordError{ID: "<unknown>"},
				))
			})

			ginkgo.It("does not update any records if any of the IDs is unknown", func() {
				err := activities.Append(*ctx, rec0)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = activities.SetSyncStatus(*ctx, store.Synced, "<record-0>", "<unknown>")
				gomega.Expect(err).To(gomega.HaveOccurred())

				recs, err := activities.Query(
					*ctx,
					store.Query{
						SyncStatus: store.Synced,
					},
				)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(recs).To(gomega.BeEmpty())
			})

			ginkgo.It("returns an error if the status is invalid", func() {
				err := activities.Append(*ctx, rec0)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = activities.SetSyncStatus(*ctx, store.SyncStatus(0), "<record-0>")
				gomega.Expect(err).To(gomega.MatchError("unrecognized sync status (0)"))
			})
		})

		ginkgo.Describe("func Close()", func() {
			ginkgo.It("returns an error if the store is already closed", func() {
				err := activities.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = activities.Close()
				gomega.Expect(err).To(gomega.Equal(store.ErrStoreClosed))
			})

			ginkgo.It("causes subsequent operations to fail", func() {
				err := activities.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = activities.Append(*ctx, rec0)
				gomega.Expect(err).To(gomega.Equal(store.ErrStoreClosed))

				_, err = activities.Query(*ctx, store.Query{})
				gomega.Expect(err).To(gomega.Equal(store.ErrStoreClosed))

				_, err = activities.Open(*ctx, store.Query{})
				gomega.Expect(err).To(gomega.Equal(store.ErrStoreClosed))

				err = activities.SetSyncStatus(*ctx, store.Synced, "<record-0>")
				gomega.Expect(err).To(gomega.Equal(store.ErrStoreClosed))
			})
		})
	})
}
