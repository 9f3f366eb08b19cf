package store

import (
	"time"

	"github.com/dogmatiq/troupe/record"
)

// Query describes a set of records of interest.
//
// A field at its zero-value does not constrain the result.
type Query struct {
	// RuntimeID limits the result to records owned by a specific instance.
	RuntimeID record.RuntimeID

	// From and To limit the result to records created within the half-open
	// time interval [From, To).
	From, To time.Time

	// SyncStatus limits the result to records with a specific
	// synchronization status.
	SyncStatus SyncStatus

	// FromOffset is the offset of the first record of interest when the
	// query is used to open a cursor. It is ignored by Query().
	FromOffset uint64
}

// IsMatch returns true if a record with the given synchronization status
// matches the query's filters.
func (q Query) IsMatch(rec *record.Record, status SyncStatus) bool {
	if q.RuntimeID != "" && rec.RuntimeID != q.RuntimeID {
		return false
	}

	if !q.From.IsZero() && rec.CreatedAt.Before(q.From) {
		return false
	}

	if !q.To.IsZero() && !rec.CreatedAt.Before(q.To) {
		return false
	}

	if q.SyncStatus != 0 && status != q.SyncStatus {
		return false
	}

	return true
}
