package sqlstore

import (
	"context"
	"sync"

	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
)

// cursor is a Cursor that polls an SQL database for matching records.
type cursor struct {
	store   *Store
	query   store.Query
	offset  uint64
	buf     []*record.Record
	counter backoff.Counter

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
	// Check immediately if the cursor is already closed.
	select {
	case <-c.closed:
		return nil, store.ErrCursorClosed
	default:
	}

	// Otherwise, setup a context that is canceled when the cursor is
	// closed.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.closed:
			cancel()
		}
	}()

	// Finally, if we actually get a context cancelation error, check if it
	// was because the cursor was closed, and if so, return a more meaningful
	// error.
	defer func() {
		if err == context.Canceled {
			select {
			case <-c.closed:
				err = store.ErrCursorClosed
			default:
			}
		}
	}()

	for {
		if len(c.buf) > 0 {
			rec := c.buf[0]
			c.buf[0] = nil // avoid memory leak
			c.buf = c.buf[1:]

			return rec, nil
		}

		if err := c.store.checkOpen(); err != nil {
			return nil, err
		}

		recs, next, err := c.store.selectRecords(ctx, c.query, c.offset)
		if err != nil {
			return nil, err
		}

		c.offset = next

		if len(recs) > 0 {
			c.buf = recs
			c.counter.Reset()

			continue
		}

		if err := c.counter.Sleep(ctx, nil); err != nil {
			return nil, err
		}
	}
}

// Close discards the cursor.
//
// It returns ErrCursorClosed if the cursor is already closed. Any current or
// future calls to Next() return ErrCursorClosed.
func (c *cursor) Close() error {
	err := store.ErrCursorClosed

	c.once.Do(func() {
		err = nil
		close(c.closed)
	})

	return err
}
