package boltstore

import (
	"context"

	"github.com/dogmatiq/troupe/internal/x/bboltx"
	"github.com/dogmatiq/troupe/internal/x/syncx"
	"go.etcd.io/bbolt"
)

// database wraps a BoltDB database with a context-aware mutex.
//
// BoltDB's own locking blocks without regard for context cancellation, so
// transactions acquire this lock before touching the underlying database.
type database struct {
	m      syncx.RWMutex
	actual *bbolt.DB
}

// newDatabase returns a database that wraps db.
func newDatabase(db *bbolt.DB) *database {
	return &database{
		actual: db,
	}
}

// View executes a function within the context of a managed read-only
// transaction.
func (db *database) View(
	ctx context.Context,
	fn func(tx *bbolt.Tx),
) {
	bboltx.Must(db.m.RLock(ctx))
	defer db.m.RUnlock()

	bboltx.Must(
		db.actual.View(
			func(tx *bbolt.Tx) (err error) {
				defer bboltx.Recover(&err)
				fn(tx)
				return nil
			},
		),
	)
}

// Update executes a function within the context of a managed read/write
// transaction.
func (db *database) Update(
	ctx context.Context,
	fn func(tx *bbolt.Tx),
) {
	bboltx.Must(db.m.Lock(ctx))
	defer db.m.Unlock()

	bboltx.Must(
		db.actual.Update(
			func(tx *bbolt.Tx) (err error) {
				defer bboltx.Recover(&err)
				fn(tx)
				return nil
			},
		),
	)
}

// Close closes the underlying database.
func (db *database) Close() error {
	return db.actual.Close()
}
