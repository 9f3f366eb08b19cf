package memorystore

import (
	"context"
	"sync"

	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
)

// cursor is a Cursor that reads records from an in-memory store.
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
func (c *cursor) Next(ctx context.Context) (*record.Record, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closed:
			return nil, store.ErrCursorClosed
		default:
		}

		rec, ready, err := c.get()

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
func (c *cursor) get() (*record.Record, <-chan struct{}, error) {
	c.store.m.Lock()
	defer c.store.m.Unlock()

	for uint64(len(c.store.items)) > c.offset {
		offset := c.offset
		c.offset++

		it := c.store.items[offset]

		if c.query.IsMatch(it.rec, it.status) {
			return it.rec, nil, nil
		}
	}

	if c.store.closed {
		return nil, nil, store.ErrStoreClosed
	}

	if c.store.ready == nil {
		c.store.ready = make(chan struct{})
	}

	return nil, c.store.ready, nil
}
