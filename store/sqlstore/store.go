// Package sqlstore provides an activity store backed by an SQL database.
package sqlstore

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/troupe/internal/x/sqlx"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
)

// DefaultPollBackoff is the default backoff strategy used by cursors to poll
// the database for new records.
var DefaultPollBackoff backoff.Strategy = backoff.WithTransforms(
	backoff.Exponential(10*time.Millisecond),
	linger.FullJitter,
	linger.Limiter(0, 500*time.Millisecond),
)

// Store is an activity store backed by an SQL database.
type Store struct {
	db     *sql.DB
	driver Driver
	poll   backoff.Strategy

	m      sync.Mutex
	closed bool
}

// Append durably writes records to the store.
func (s *Store) Append(ctx context.Context, recs ...*record.Record) (err error) {
	defer sqlx.Recover(&err)

	stored := make([]*record.Record, len(recs))
	data := make([][]byte, len(recs))

	for i, rec := range recs {
		sqlx.Must(rec.Validate())

		clone := *rec
		clone.Meta.Persistent = true

		stored[i] = &clone
		data[i] = record.MustMarshalBinary(&clone)
	}

	if err := s.checkOpen(); err != nil {
		return err
	}

	tx := sqlx.Begin(ctx, s.db)
	defer tx.Rollback()

	next, err := s.driver.UpdateNextOffset(ctx, tx, uint64(len(stored)))
	sqlx.Must(err)

	for i, rec := range stored {
		sqlx.Must(
			s.driver.InsertRecord(
				ctx,
				tx,
				next,
				rec,
				data[i],
				store.LocalOnly,
			),
		)

		next++
	}

	sqlx.Commit(tx)

	return nil
}

// Query returns the records that match q, ordered by creation time,
// ascending.
func (s *Store) Query(ctx context.Context, q store.Query) (_ []*record.Record, err error) {
	defer sqlx.Recover(&err)

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	recs, _, err := s.selectRecords(ctx, q, 0)
	if err != nil {
		return nil, err
	}

	// Records are stored in append order, which is not necessarily creation
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

	strategy := s.poll
	if strategy == nil {
		strategy = DefaultPollBackoff
	}

	return &cursor{
		store:  s,
		query:  q,
		offset: q.FromOffset,
		counter: backoff.Counter{
			Strategy: strategy,
		},
		closed: make(chan struct{}),
	}, nil
}

// SetSyncStatus updates the synchronization status of the records with the
// given IDs.
func (s *Store) SetSyncStatus(
	ctx context.Context,
	status store.SyncStatus,
	ids ...string,
) (err error) {
	defer sqlx.Recover(&err)

	if err := status.Validate(); err != nil {
		return err
	}

	if err := s.checkOpen(); err != nil {
		return err
	}

	tx := sqlx.Begin(ctx, s.db)
	defer tx.Rollback()

	// The transaction is rolled back on the first unknown ID, so that an
	// unknown ID never results in a partial update.
	for _, id := range ids {
		ok, err := s.driver.UpdateSyncStatus(ctx, tx, status, id)
		sqlx.Must(err)

		if !ok {
			return store.UnknownRecordError{ID: id}
		}
	}

	sqlx.Commit(tx)

	return nil
}

// Close closes the store.
//
// It does not close the underlying database pool, which is owned by the
// provider or the application.
func (s *Store) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}

	s.closed = true

	return nil
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

// selectRecords returns the records that match q with an offset of o or
// greater, ordered by offset, together with the offset that follows the last
// scanned row.
func (s *Store) selectRecords(
	ctx context.Context,
	q store.Query,
	o uint64,
) (_ []*record.Record, next uint64, err error) {
	defer sqlx.Recover(&err)

	rows, err := s.driver.SelectRecords(ctx, s.db, q, o)
	sqlx.Must(err)
	defer rows.Close()

	var recs []*record.Record
	next = o

	for rows.Next() {
		offset, rec, err := s.driver.ScanRecord(rows)
		sqlx.Must(err)

		recs = append(recs, rec)
		next = offset + 1
	}

	sqlx.Must(rows.Err())

	return recs, next, nil
}
