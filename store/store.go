package store

import (
	"context"
	"errors"

	"github.com/dogmatiq/troupe/record"
)

// ErrStoreClosed is returned by operations performed on a store that has
// been closed.
var ErrStoreClosed = errors.New("store is closed")

// ErrCursorClosed is returned by Cursor.Next() and Close() if the cursor is
// closed.
var ErrCursorClosed = errors.New("cursor is closed")

// A Store is a durable, append-only log of the records produced and consumed
// by runtime instances.
//
// It is the basis for crash recovery and for replication of records to a
// remote store by a separate synchronization process.
type Store interface {
	// Append durably writes records to the store.
	//
	// Each record is written atomically, and is never lost once Append()
	// returns nil. Records enter the store with a synchronization status of
	// LocalOnly.
	//
	// It returns a DuplicateIDError if any of the records has an ID that is
	// already present in the store, in which case no records are written.
	Append(ctx context.Context, recs ...*record.Record) error

	// Query returns the records that match q, ordered by creation time,
	// ascending.
	Query(ctx context.Context, q Query) ([]*record.Record, error)

	// Open returns a cursor that yields the records that match q as they
	// are appended to the store.
	//
	// q.FromOffset is the offset of the first record of interest.
	Open(ctx context.Context, q Query) (Cursor, error)

	// SetSyncStatus updates the synchronization status of the records with
	// the given IDs.
	//
	// It returns an UnknownRecordError if any of the IDs is not present in
	// the store, in which case no statuses are changed.
	SetSyncStatus(ctx context.Context, s SyncStatus, ids ...string) error

	// Close closes the store.
	Close() error
}

// A Cursor is a sequence of records read from a store.
//
// Cursors are not safe for concurrent use.
type Cursor interface {
	// Next returns the next record that matches the cursor's query.
	//
	// If the end of the known records is reached, it blocks until a
	// relevant record is appended to the store or ctx is canceled.
	Next(ctx context.Context) (*record.Record, error)

	// Close stops the cursor.
	//
	// Any current or future calls to Next() return ErrCursorClosed.
	Close() error
}

// A Provider is a source of activity stores.
type Provider interface {
	// Open returns the activity store used to persist records.
	Open(ctx context.Context) (Store, error)
}
