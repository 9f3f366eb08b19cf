package boltstore

import (
	"context"
	"sort"
	"sync"

	"github.com/dogmatiq/troupe/internal/x/bboltx"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
	"go.etcd.io/bbolt"
)

var (
	// activityBucketKey is the key for the bucket at the root of the activity
	// store.
	activityBucketKey = []byte("activity")

	// recordsBucketKey is the key for a child bucket that contains each
	// record.
	//
	// The keys are the record offsets encoded as 8-byte big-endian packets.
	// The values are record.Record values marshaled using CBOR.
	recordsBucketKey = []byte("records")

	// idsBucketKey is the key for a child bucket that indexes record IDs
	// against their offsets.
	//
	// The keys are the record IDs converted to bytes. The values are the
	// record offsets encoded as 8-byte big-endian packets.
	idsBucketKey = []byte("ids")

	// statusesBucketKey is the key for a child bucket that contains the
	// synchronization status of each record.
	//
	// The keys are the record offsets encoded as 8-byte big-endian packets.
	// The values are single bytes containing the status.
	statusesBucketKey = []byte("statuses")

	// nextOffsetKey is the key of a value within the activity bucket that
	// contains the next unused offset, encoded as an 8-byte big-endian
	// packet.
	nextOffsetKey = []byte("offset")
)

// Store is an activity store backed by a BoltDB database.
type Store struct {
	db *database

	m      sync.Mutex
	ready  chan struct{} // closed when records are appended, nil otherwise
	closed bool
}

// Append durably writes records to the store.
func (s *Store) Append(ctx context.Context, recs ...*record.Record) (err error) {
	defer bboltx.Recover(&err)

	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			return err
		}
	}

	if err := s.checkOpen(); err != nil {
		return err
	}

	s.db.Update(
		ctx,
		func(tx *bbolt.Tx) {
			appendRecords(tx, recs)

			tx.OnCommit(func() {
				s.notify()
			})
		},
	)

	return nil
}

// Query returns the records that match q, ordered by creation time,
// ascending.
func (s *Store) Query(ctx context.Context, q store.Query) (_ []*record.Record, err error) {
	defer bboltx.Recover(&err)

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var recs []*record.Record

	s.db.View(
		ctx,
		func(tx *bbolt.Tx) {
			activity := bboltx.Bucket(tx, activityBucketKey)
			if activity == nil {
				return
			}

			next := unmarshalOffset(activity.Get(nextOffsetKey))

			for o := uint64(0); o < next; o++ {
				bboltx.Must(ctx.Err()) // Bail if we're taking too long.

				rec, status := loadRecord(activity, o)

				if q.IsMatch(rec, status) {
					recs = append(recs, rec)
				}
			}
		},
	)

	// Records are held in append order, which is not necessarily creation
	// order when several producers append concurrently.
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})

	return recs, nil
}

// Open returns a cursor that yields the records that match q as they are
// appended to the store.
func (s *Store) Open(ctx context.Context, q store.Query) (store.Cursor, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	return &cursor{
		store:  s,
		query:  q,
		offset: q.FromOffset,
		closed: make(chan struct{}),
	}, nil
}

// SetSyncStatus updates the synchronization status of the records with the
// given IDs.
func (s *Store) SetSyncStatus(ctx context.Context, status store.SyncStatus, ids ...string) (err error) {
	defer bboltx.Recover(&err)

	if err := status.Validate(); err != nil {
		return err
	}

	if err := s.checkOpen(); err != nil {
		return err
	}

	s.db.Update(
		ctx,
		func(tx *bbolt.Tx) {
			activity := bboltx.CreateBucketIfNotExists(tx, activityBucketKey)
			index := bboltx.CreateBucketIfNotExists(activity, idsBucketKey)
			statuses := bboltx.CreateBucketIfNotExists(activity, statusesBucketKey)

			// Resolve every ID before changing anything. The transaction is
			// rolled back if any ID is unknown, so an unknown ID never
			// results in a partial update.
			keys := make([][]byte, len(ids))

			for i, id := range ids {
				k := index.Get([]byte(id))
				if k == nil {
					panic(bboltx.PanicSentinel{
						Cause: store.UnknownRecordError{ID: id},
					})
				}

				keys[i] = k
			}

			for _, k := range keys {
				bboltx.Put(statuses, k, marshalSyncStatus(status))
			}
		},
	)

	return nil
}

// Close closes the store.
//
// Any cursors blocked waiting for new records are woken, and fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	s.m.Lock()

	if s.closed {
		s.m.Unlock()
		return store.ErrStoreClosed
	}

	s.closed = true

	if s.ready != nil {
		close(s.ready)
		s.ready = nil
	}

	s.m.Unlock()

	// The database is closed outside of the mutex. Closing blocks until any
	// in-flight transactions have ended, and the cursors that own them
	// acquire the mutex when their transactions find no records.
	return s.db.Close()
}

// checkOpen returns an error if the store is closed.
func (s *Store) checkOpen() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}

	return nil
}

// notify wakes any cursors blocked waiting for new records.
func (s *Store) notify() {
	s.m.Lock()
	defer s.m.Unlock()

	if s.ready != nil {
		close(s.ready)
		s.ready = nil
	}
}

// appendRecords writes records to the database.
func appendRecords(tx *bbolt.Tx, recs []*record.Record) {
	activity := bboltx.CreateBucketIfNotExists(tx, activityBucketKey)
	records := bboltx.CreateBucketIfNotExists(activity, recordsBucketKey)
	index := bboltx.CreateBucketIfNotExists(activity, idsBucketKey)
	statuses := bboltx.CreateBucketIfNotExists(activity, statusesBucketKey)

	next := unmarshalOffset(activity.Get(nextOffsetKey))

	for _, rec := range recs {
		// The index reflects writes made earlier in this same transaction,
		// so this also catches duplicates within the batch itself. The
		// transaction is rolled back on panic, so a duplicate never results
		// in a partial append.
		if index.Get([]byte(rec.ID)) != nil {
			panic(bboltx.PanicSentinel{
				Cause: store.DuplicateIDError{ID: rec.ID},
			})
		}

		stored := *rec
		stored.Meta.Persistent = true

		k := marshalOffset(next)

		bboltx.Put(records, k, record.MustMarshalBinary(&stored))
		bboltx.Put(index, []byte(stored.ID), k)
		bboltx.Put(statuses, k, marshalSyncStatus(store.LocalOnly))

		next++
	}

	bboltx.Put(activity, nextOffsetKey, marshalOffset(next))
}

// loadRecord loads the record at a specific offset, along with its
// synchronization status.
func loadRecord(activity *bbolt.Bucket, o uint64) (*record.Record, store.SyncStatus) {
	k := marshalOffset(o)
	v := activity.Bucket(recordsBucketKey).Get(k)

	var rec record.Record
	bboltx.Must(record.UnmarshalBinary(v, &rec))

	status := unmarshalSyncStatus(
		activity.Bucket(statusesBucketKey).Get(k),
	)

	return &rec, status
}
