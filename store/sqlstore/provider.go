package sqlstore

import (
	"context"
	"database/sql"
	"runtime"
	"sync"
	"time"

	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/troupe/store"
	"go.uber.org/multierr"
)

var (
	// DefaultMaxIdleConns is the default maximum number of idle connections
	// allowed in a database pool opened by a DSNProvider.
	DefaultMaxIdleConns = runtime.GOMAXPROCS(0)

	// DefaultMaxOpenConns is the default maximum number of open connections
	// allowed in a database pool opened by a DSNProvider.
	DefaultMaxOpenConns = DefaultMaxIdleConns * 10

	// DefaultMaxConnLifetime is the default maximum lifetime of connections
	// in a database pool opened by a DSNProvider.
	DefaultMaxConnLifetime = 10 * time.Minute
)

// Provider is a store.Provider that provides activity stores backed by an
// existing open database pool.
//
// The pool remains owned by the application; closing the store does not
// close it.
type Provider struct {
	// DB is the database pool.
	DB *sql.DB

	// Driver is the database-specific SQL driver.
	Driver Driver

	// PollBackoff is the backoff strategy used by cursors to poll the
	// database for new records. If it is nil, DefaultPollBackoff is used.
	PollBackoff backoff.Strategy

	m     sync.Mutex
	store *Store
}

// Open returns the activity store used to persist records.
//
// Every call returns the same store. The schema is created on the first
// call, if it does not already exist.
func (p *Provider) Open(ctx context.Context) (store.Store, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.store == nil {
		if err := p.Driver.CreateSchema(ctx, p.DB); err != nil {
			return nil, err
		}

		p.store = &Store{
			db:     p.DB,
			driver: p.Driver,
			poll:   p.PollBackoff,
		}
	}

	return p.store, nil
}

// DSNProvider is a store.Provider that provides activity stores backed by a
// database pool that it opens from a DSN.
//
// The pool is owned by the provider's store; it is closed when the store is
// closed.
type DSNProvider struct {
	// DriverName is the name of the database/sql driver to open the pool
	// with, such as "sqlite3" or "postgres".
	DriverName string

	// DSN is the data source name of the database.
	DSN string

	// Driver is the database-specific SQL driver.
	Driver Driver

	// MaxIdleConns is the maximum number of idle connections allowed in the
	// pool. If it is zero, DefaultMaxIdleConns is used.
	MaxIdleConns int

	// MaxOpenConns is the maximum number of open connections allowed in the
	// pool. If it is zero, DefaultMaxOpenConns is used.
	MaxOpenConns int

	// MaxConnLifetime is the maximum lifetime of connections in the pool. If
	// it is zero, DefaultMaxConnLifetime is used.
	MaxConnLifetime time.Duration

	// PollBackoff is the backoff strategy used by cursors to poll the
	// database for new records. If it is nil, DefaultPollBackoff is used.
	PollBackoff backoff.Strategy

	m     sync.Mutex
	store *dsnStore
}

// Open returns the activity store used to persist records.
//
// Every call returns the same store. The pool is opened and the schema
// created on the first call.
func (p *DSNProvider) Open(ctx context.Context) (store.Store, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.store == nil {
		db, err := sql.Open(p.DriverName, p.DSN)
		if err != nil {
			return nil, err
		}

		n := p.MaxIdleConns
		if n == 0 {
			n = DefaultMaxIdleConns
		}
		db.SetMaxIdleConns(n)

		n = p.MaxOpenConns
		if n == 0 {
			n = DefaultMaxOpenConns
		}
		db.SetMaxOpenConns(n)

		d := p.MaxConnLifetime
		if d == 0 {
			d = DefaultMaxConnLifetime
		}
		db.SetConnMaxLifetime(d)

		if err := p.Driver.CreateSchema(ctx, db); err != nil {
			return nil, multierr.Append(err, db.Close())
		}

		p.store = &dsnStore{
			Store: Store{
				db:     db,
				driver: p.Driver,
				poll:   p.PollBackoff,
			},
		}
	}

	return p.store, nil
}

// dsnStore is a Store that owns its database pool.
type dsnStore struct {
	Store
}

// Close closes the store and the underlying database pool.
func (s *dsnStore) Close() error {
	if err := s.Store.Close(); err != nil {
		return err
	}

	return s.db.Close()
}
