package memorystore

import (
	"context"
	"sort"
	"sync"

	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
)

// Provider is a store.Provider that provides in-memory activity stores.
//
// Stores produced by the provider are not durable across process restarts.
// The provider is intended for testing and for runtimes that do not require
// persistence.
type Provider struct {
	m     sync.Mutex
	store *Store
}

// Open returns the activity store used to persist records.
//
// Every call returns the same store, which is created on the first call.
func (p *Provider) Open(ctx context.Context) (store.Store, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.m.Lock()
	defer p.m.Unlock()

	if p.store == nil {
		p.store = &Store{}
	}

	return p.store, nil
}

// Store is an in-memory activity store.
type Store struct {
	m      sync.Mutex
	ready  chan struct{} // closed when records are appended, nil otherwise
	items  []*item       // in append order; a record's offset is its index
	byID   map[string]*item
	closed bool
}

// item is a container for a stored record and its synchronization status.
type item struct {
	rec    *record.Record
	status store.SyncStatus
}

// Append durably writes records to the store.
func (s *Store) Append(ctx context.Context, recs ...*record.Record) error {
	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			return err
		}
	}

	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}

	if s.byID == nil {
		s.byID = map[string]*item{}
	}

	// Reject the entire batch before anything is written, so that a
	// duplicate never results in a partial append.
	seen := map[string]struct{}{}
	for _, rec := range recs {
		if _, ok := s.byID[rec.ID]; ok {
			return store.DuplicateIDError{ID: rec.ID}
		}

		if _, ok := seen[rec.ID]; ok {
			return store.DuplicateIDError{ID: rec.ID}
		}

		seen[rec.ID] = struct{}{}
	}

	for _, rec := range recs {
		stored := *rec
		stored.Meta.Persistent = true

		it := &item{
			rec:    &stored,
			status: store.LocalOnly,
		}

		s.items = append(s.items, it)
		s.byID[stored.ID] = it
	}

	if s.ready != nil {
		close(s.ready)
		s.ready = nil
	}

	return nil
}

// Query returns the records that match q, ordered by creation time,
// ascending.
func (s *Store) Query(ctx context.Context, q store.Query) ([]*record.Record, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return nil, store.ErrStoreClosed
	}

	var recs []*record.Record

	for _, it := range s.items {
		if q.IsMatch(it.rec, it.status) {
			recs = append(recs, it.rec)
		}
	}

	// Records are held in append order, which is not necessarily creation
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

	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return nil, store.ErrStoreClosed
	}

	return &cursor{
		store:  s,
		query:  q,
		offset: q.FromOffset,
		closed: make(chan struct{}),
	}, nil
}

// SetSyncStatus updates the synchronization status of the records with the
// given IDs.
func (s *Store) SetSyncStatus(ctx context.Context, status store.SyncStatus, ids ...string) error {
	if err := status.Validate(); err != nil {
		return err
	}

	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}

	// Resolve every ID before changing anything, so that an unknown ID
	// never results in a partial update.
	items := make([]*item, len(ids))

	for i, id := range ids {
		it, ok := s.byID[id]
		if !ok {
			return store.UnknownRecordError{ID: id}
		}

		items[i] = it
	}

	for _, it := range items {
		it.status = status
	}

	return nil
}

// Close closes the store.
//
// Any cursors blocked waiting for new records are woken, and fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}

	s.closed = true

	if s.ready != nil {
		close(s.ready)
		s.ready = nil
	}

	return nil
}
