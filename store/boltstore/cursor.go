package boltstore

import (
	"context"
	"sync"

	"github.com/dogmatiq/troupe/internal/x/bboltx"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
	"go.etcd.io/bbolt"
)

// cursor is a Cursor that reads records from a BoltDB database.
type cursor struct {
	store  *Store
	query  store.Query
	offset uint64

	once   sync.Once
	closed chan struct{}
}

// Next returns the next record in the store that matches the query.
//
// If the end of the store is reached it blocks until a matching record is
// appended to the store or ctx is canceled.
//
// If the cursor is closed before or during a call to Next(), it returns
// ErrCursorClosed.
func (c *cursor) Next(ctx context.Context) (_ *record.Record, err error) {
	defer bboltx.Recover(&err)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closed:
			return nil, store.ErrCursorClosed
		default:
		}

		rec, ready, err := c.get(ctx)

		if ready == nil {
			return rec, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closed:
			return nil, store.ErrCursorClosed
		case <-ready:
			continue // keep to see coverage
		}
	}
}

// Close discards the cursor.
//
// It returns ErrCursorClosed if the cursor is already closed.
// Any current or future calls to Next() return ErrCursorClosed.
func (c *cursor) Close() error {
	err := store.ErrCursorClosed

	c.once.Do(func() {
		err = nil
		close(c.closed)
	})

	return err
}

// get returns the next matching record, or if the end of the store is
// reached, it returns a "ready" channel that is closed when a record is
// appended.
func (c *cursor) get(ctx context.Context) (*record.Record, <-chan struct{}, error) {
	var got *record.Record

	// The mutex must not be held while the transaction is open. Close()
	// blocks until in-flight transactions end, and it does so while the
	// store is locked.
	if err := c.store.checkOpen(); err != nil {
		return nil, nil, err
	}

	c.store.db.View(
		ctx,
		func(tx *bbolt.Tx) {
			activity := bboltx.Bucket(tx, activityBucketKey)
			if activity == nil {
				return
			}

			next := unmarshalOffset(activity.Get(nextOffsetKey))

			for next > c.offset {
				bboltx.Must(ctx.Err()) // Bail if we're taking too long.

				rec, status := loadRecord(activity, c.offset)
				c.offset++

				if c.query.IsMatch(rec, status) {
					got = rec
					return
				}
			}
		},
	)

	if got != nil {
		return got, nil, nil
	}

	c.store.m.Lock()
	defer c.store.m.Unlock()

	if c.store.closed {
		return nil, nil, store.ErrStoreClosed
	}

	if c.store.ready == nil {
		c.store.ready = make(chan struct{})
	}

	return nil, c.store.ready, nil
}
