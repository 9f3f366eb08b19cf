package fixtures

import (
	"context"

	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/store"
	"github.com/dogmatiq/troupe/store/memorystore"
)

// ProviderStub is a test implementation of the store.Provider interface.
//
// It is based on an in-memory provider.
type ProviderStub struct {
	Memory memorystore.Provider

	OpenFunc func(context.Context) (store.Store, error)
}

// Open returns the activity store used to persist records.
//
// If p.OpenFunc is non-nil, it returns p.OpenFunc(ctx), otherwise it
// dispatches to p.Memory.
func (p *ProviderStub) Open(ctx context.Context) (store.Store, error) {
	if p.OpenFunc != nil {
		return p.OpenFunc(ctx)
	}

	return p.Memory.Open(ctx)
}

// StoreStub is a test implementation of the store.Store interface.
//
// It is based on an in-memory store.
type StoreStub struct {
	Memory memorystore.Store

	AppendFunc        func(context.Context, ...*record.Record) error
	QueryFunc         func(context.Context, store.Query) ([]*record.Record, error)
	OpenFunc          func(context.Context, store.Query) (store.Cursor, error)
	SetSyncStatusFunc func(context.Context, store.SyncStatus, ...string) error
	CloseFunc         func() error
}

// Append durably writes records to the store.
//
// If s.AppendFunc is non-nil, it returns s.AppendFunc(ctx, recs...), otherwise
// it dispatches to s.Memory.
func (s *StoreStub) Append(ctx context.Context, recs ...*record.Record) error {
	if s.AppendFunc != nil {
		return s.AppendFunc(ctx, recs...)
	}

	return s.Memory.Append(ctx, recs...)
}

// Query returns the records that match q, ordered by creation time,
// ascending.
//
// If s.QueryFunc is non-nil, it returns s.QueryFunc(ctx, q), otherwise it
// dispatches to s.Memory.
func (s *StoreStub) Query(ctx context.Context, q store.Query) ([]*record.Record, error) {
	if s.QueryFunc != nil {
		return s.QueryFunc(ctx, q)
	}

	return s.Memory.Query(ctx, q)
}

// Open returns a cursor that yields the records that match q as they are
// appended to the store.
//
// If s.OpenFunc is non-nil, it returns s.OpenFunc(ctx, q), otherwise it
// dispatches to s.Memory.
func (s *StoreStub) Open(ctx context.Context, q store.Query) (store.Cursor, error) {
	if s.OpenFunc != nil {
		return s.OpenFunc(ctx, q)
	}

	return s.Memory.Open(ctx, q)
}

// SetSyncStatus updates the synchronization status of the records with the
// given IDs.
//
// If s.SetSyncStatusFunc is non-nil, it returns s.SetSyncStatusFunc(ctx,
// status, ids...), otherwise it dispatches to s.Memory.
func (s *StoreStub) SetSyncStatus(ctx context.Context, status store.SyncStatus, ids ...string) error {
	if s.SetSyncStatusFunc != nil {
		return s.SetSyncStatusFunc(ctx, status, ids...)
	}

	return s.Memory.SetSyncStatus(ctx, status, ids...)
}

// Close closes the store.
//
// If s.CloseFunc is non-nil, it returns s.CloseFunc(), otherwise it
// dispatches to s.Memory.
func (s *StoreStub) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}

	return s.Memory.Close()
}
