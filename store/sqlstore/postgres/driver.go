// Package postgres provides an activity store driver for PostgreSQL.
package postgres

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/troupe/internal/x/sqlx"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
	"github.com/dogmatiq/troupe/store/sqlstore"
	"github.com/dogmatiq/troupe/store/sqlstore/internal/query"
)

// Driver is an implementation of sqlstore.Driver for PostgreSQL.
var Driver sqlstore.Driver = driver{}

type driver struct{}

// CreateSchema creates the schema elements required by the activity store,
// if they do not already exist.
func (driver) CreateSchema(ctx context.Context, db *sql.DB) (err error) {
	defer sqlx.Recover(&err)

	tx := sqlx.Begin(ctx, db)
	defer tx.Rollback()

	sqlx.Exec(
		ctx,
		tx,
		`CREATE TABLE IF NOT EXISTS activity_offset (
			id          INT NOT NULL PRIMARY KEY CHECK (id = 0),
			next_offset BIGINT NOT NULL
		)`,
	)

	sqlx.Exec(
		ctx,
		tx,
		`INSERT INTO activity_offset (
			id,
			next_offset
		) VALUES (
			0, 0
		) ON CONFLICT (id) DO NOTHING`,
	)

	sqlx.Exec(
		ctx,
		tx,
		`CREATE TABLE IF NOT EXISTS activity (
			record_offset BIGINT NOT NULL PRIMARY KEY,
			id            TEXT NOT NULL UNIQUE,
			runtime_id    TEXT NOT NULL,
			created_at    BIGINT NOT NULL, -- unix nanoseconds
			sync_status   INT NOT NULL,
			data          BYTEA NOT NULL
		)`,
	)

	sqlx.Exec(
		ctx,
		tx,
		`CREATE INDEX IF NOT EXISTS activity_query ON activity (
			runtime_id,
			created_at
		)`,
	)

	sqlx.Commit(tx)

	return nil
}

// UpdateNextOffset reserves n offsets and returns the first of them.
//
// The row lock taken by the update serializes concurrent appends.
func (driver) UpdateNextOffset(
	ctx context.Context,
	tx *sql.Tx,
	n uint64,
) (_ uint64, err error) {
	defer func() {
		sqlx.Recover(&err)
		err = convertContextErrors(ctx, err)
	}()

	next := sqlx.QueryInt64(
		ctx,
		tx,
		`UPDATE activity_offset SET
			next_offset = next_offset + $1
		WHERE id = 0
		RETURNING next_offset`,
		n,
	)

	return uint64(next) - n, nil
}

// InsertRecord saves a record at a specific offset.
func (driver) InsertRecord(
	ctx context.Context,
	tx *sql.Tx,
	o uint64,
	rec *record.Record,
	data []byte,
	status store.SyncStatus,
) error {
	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO activity (
			record_offset,
			id,
			runtime_id,
			created_at,
			sync_status,
			data
		) VALUES (
			$1, $2, $3, $4, $5, $6
		) ON CONFLICT (id) DO NOTHING`,
		o,
		rec.ID,
		string(rec.RuntimeID),
		rec.CreatedAt.UnixNano(),
		int(status),
		data,
	)
	if err != nil {
		return convertContextErrors(ctx, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return store.DuplicateIDError{ID: rec.ID}
	}

	return nil
}

// UpdateSyncStatus sets the synchronization status of the record with the
// given ID.
func (driver) UpdateSyncStatus(
	ctx context.Context,
	tx *sql.Tx,
	s store.SyncStatus,
	id string,
) (bool, error) {
	res, err := tx.ExecContext(
		ctx,
		`UPDATE activity SET
			sync_status = $1
		WHERE id = $2`,
		int(s),
		id,
	)
	if err != nil {
		return false, convertContextErrors(ctx, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

// SelectRecords selects the records that match q with an offset of o or
// greater, ordered by offset, ascending.
func (driver) SelectRecords(
	ctx context.Context,
	db *sql.DB,
	q store.Query,
	o uint64,
) (*sql.Rows, error) {
	b := &query.Builder{Numeric: true}

	b.Write(
		`SELECT record_offset, data FROM activity WHERE record_offset >= ?`,
		o,
	)

	if q.RuntimeID != "" {
		b.Write(`AND runtime_id = ?`, string(q.RuntimeID))
	}

	if !q.From.IsZero() {
		b.Write(`AND created_at >= ?`, q.From.UnixNano())
	}

	if !q.To.IsZero() {
		b.Write(`AND created_at < ?`, q.To.UnixNano())
	}

	if q.SyncStatus != 0 {
		b.Write(`AND sync_status = ?`, int(q.SyncStatus))
	}

	b.Write(`ORDER BY record_offset`)

	rows, err := db.QueryContext(ctx, b.String(), b.Parameters...)

	return rows, convertContextErrors(ctx, err)
}

// ScanRecord scans the next row from a result set produced by
// SelectRecords().
func (driver) ScanRecord(rows *sql.Rows) (uint64, *record.Record, error) {
	var (
		o    uint64
		data []byte
	)

	if err := rows.Scan(&o, &data); err != nil {
		return 0, nil, err
	}

	rec := &record.Record{}
	if err := record.UnmarshalBinary(data, rec); err != nil {
		return 0, nil, err
	}

	return o, rec, nil
}
