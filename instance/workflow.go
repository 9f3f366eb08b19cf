package instance

import (
	"context"

	"github.com/dogmatiq/troupe/record"
)

// A Workflow is an application-defined state-transition function invoked for
// each record delivered to an instance.
//
// It is passed the record being processed and the instance's current state.
// It returns the instance's next state, zero or more output records and an
// error, if any.
//
// Output records with their Persistent metadata flag set are appended to the
// activity store; all output records are published to the instance's
// subscribers.
//
// A non-nil error discards the returned state and outputs. The failure is
// reported to subscribers as an error record and the instance moves on to
// its next queued record, unless the error is marked fatal using Fatal(), in
// which case the instance is terminated.
//
// Workflows for the same instance are never invoked concurrently. ctx is
// canceled if the record's time-to-live elapses, or if the instance is
// terminated and the termination grace period expires.
type Workflow func(
	ctx context.Context,
	rec *record.Record,
	state any,
) (any, []*record.Record, error)

// Fatal marks err as fatal to the instance that encounters it.
func Fatal(err error) error {
	return FatalError{err}
}

// FatalError is an error that indicates an instance can not meaningfully
// continue processing records.
type FatalError struct {
	// Cause is the underlying failure.
	Cause error
}

func (e FatalError) Error() string {
	return "fatal: " + e.Cause.Error()
}

// Unwrap returns the underlying failure.
func (e FatalError) Unwrap() error {
	return e.Cause
}
