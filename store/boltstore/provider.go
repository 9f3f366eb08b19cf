package boltstore

import (
	"context"
	"os"
	"sync"

	"github.com/dogmatiq/troupe/internal/x/bboltx"
	"github.com/dogmatiq/troupe/store"
	"go.etcd.io/bbolt"
)

// DefaultPath is the path of the database file used when no path is
// specified.
const DefaultPath = "/var/run/troupe.boltdb"

// Provider is a store.Provider that provides activity stores backed by a
// BoltDB database file.
type Provider struct {
	// Path is the path of the database file. If it is empty, DefaultPath is
	// used.
	Path string

	// Mode is the file mode of the database file. If it is zero, 0600 is
	// used.
	Mode os.FileMode

	// Options is the BoltDB options used when opening the database. If it is
	// nil, bbolt.DefaultOptions is used.
	Options *bbolt.Options

	m     sync.Mutex
	store *Store
}

// Open returns the activity store used to persist records.
//
// Every call returns the same store. The database file is opened on the
// first call.
func (p *Provider) Open(ctx context.Context) (store.Store, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.store == nil {
		path := p.Path
		if path == "" {
			path = DefaultPath
		}

		db, err := bboltx.Open(ctx, path, p.Mode, p.Options)
		if err != nil {
			return nil, err
		}

		p.store = &Store{
			db: newDatabase(db),
		}
	}

	return p.store, nil
}
