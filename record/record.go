package record

import (
	"errors"
	"time"
)

// RuntimeID uniquely identifies a runtime instance.
//
// IDs are assigned when an instance is created. They are immutable and are
// never reused, even after the instance is terminated.
type RuntimeID string

// Validate returns an error if id is invalid.
func (id RuntimeID) Validate() error {
	if id == "" {
		return errors.New("runtime ID must not be empty")
	}

	return nil
}

// Record is the unit of communication and persistence exchanged between
// runtime instances and external callers.
//
// Records are immutable once appended to an activity store. Corrections are
// expressed as new records, never as in-place edits.
type Record struct {
	// ID uniquely identifies the record within an activity store.
	ID string

	// RuntimeID identifies the instance the record is addressed to, or that
	// owns it.
	RuntimeID RuntimeID

	// CreatedAt is the time at which the record was created.
	CreatedAt time.Time

	// Type classifies the record.
	Type Type

	// Payload is the application-defined content of the record. The runtime
	// treats it as an opaque blob; its schema is known only to the workflows
	// that produce and consume it.
	Payload []byte

	// Meta contains optional routing and bookkeeping information about the
	// record.
	Meta Metadata
}

// ScheduledAt returns the earliest time at which the record is eligible for
// processing.
func (r *Record) ScheduledAt() time.Time {
	if r.Meta.ScheduledFor.After(r.CreatedAt) {
		return r.Meta.ScheduledFor
	}

	return r.CreatedAt
}

// ExpiresAt returns the time at which the record expires if it has not been
// processed by then.
//
// ok is false if the record never expires.
func (r *Record) ExpiresAt() (_ time.Time, ok bool) {
	if r.Meta.Timeout <= 0 {
		return time.Time{}, false
	}

	return r.CreatedAt.Add(r.Meta.Timeout), true
}

// Validate returns an error if r is invalid.
func (r *Record) Validate() error {
	if r.ID == "" {
		return errors.New("record ID must not be empty")
	}

	if err := r.RuntimeID.Validate(); err != nil {
		return err
	}

	if r.CreatedAt.IsZero() {
		return errors.New("created-at time must not be zero")
	}

	if err := r.Type.Validate(); err != nil {
		return err
	}

	return r.Meta.Validate()
}
