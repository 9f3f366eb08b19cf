package record

import (
	"errors"
	"time"
)

// Metadata is a container for optional information about a record.
//
// It is a fixed set of fields rather than an open map so that the
// bookkeeping performed by the runtime remains type-safe. A field at its
// zero-value is simply absent.
type Metadata struct {
	// Source identifies the instance that produced the record. It is empty
	// if the record originated outside the runtime.
	Source RuntimeID

	// CorrelationID is the ID of the "root" record that entered the runtime
	// to cause this record, either directly or indirectly.
	CorrelationID string

	// CausationID is the ID of the record that was being processed when this
	// record was produced.
	CausationID string

	// Priority determines the record's dequeue precedence.
	Priority Priority

	// ScheduledFor is the earliest time at which the record may be
	// processed. A zero-value imposes no delay.
	ScheduledFor time.Time

	// Timeout is the record's time-to-live, measured from its creation time.
	// A record that is still queued when its time-to-live elapses is
	// abandoned without being processed. A zero-value means the record never
	// expires.
	Timeout time.Duration

	// Processed is true once a workflow has handled the record.
	Processed bool

	// Persistent is true if the record is to be retained in the activity
	// store.
	Persistent bool
}

// Validate returns an error if md is invalid.
func (md *Metadata) Validate() error {
	if md.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}

	return md.Priority.Validate()
}
