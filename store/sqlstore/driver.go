package sqlstore

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
)

// Driver is the interface for database-specific SQL.
type Driver interface {
	// CreateSchema creates the schema elements required by the activity
	// store, if they do not already exist.
	CreateSchema(ctx context.Context, db *sql.DB) error

	// UpdateNextOffset reserves n offsets and returns the first of them.
	UpdateNextOffset(ctx context.Context, tx *sql.Tx, n uint64) (uint64, error)

	// InsertRecord saves a record at a specific offset.
	//
	// data is the record's binary representation. status is the record's
	// initial synchronization status.
	//
	// It returns a store.DuplicateIDError if a record with the same ID
	// already exists.
	InsertRecord(
		ctx context.Context,
		tx *sql.Tx,
		o uint64,
		rec *record.Record,
		data []byte,
		status store.SyncStatus,
	) error

	// UpdateSyncStatus sets the synchronization status of the record with
	// the given ID.
	//
	// It returns false if no such record exists.
	UpdateSyncStatus(
		ctx context.Context,
		tx *sql.Tx,
		s store.SyncStatus,
		id string,
	) (bool, error)

	// SelectRecords selects the records that match q with an offset of o or
	// greater, ordered by offset, ascending.
	SelectRecords(
		ctx context.Context,
		db *sql.DB,
		q store.Query,
		o uint64,
	) (*sql.Rows, error)

	// ScanRecord scans the next row from a result set produced by
	// SelectRecords().
	ScanRecord(rows *sql.Rows) (uint64, *record.Record, error)
}
