package troupe

import (
	"errors"
	"fmt"

	"github.com/dogmatiq/troupe/record"
)

// ErrRuntimeStopped is returned by operations performed on a runtime that
// has been shut down.
var ErrRuntimeStopped = errors.New("runtime has been shut down")

// NotFoundError is the error returned by operations that target an instance
// that has never been created.
type NotFoundError struct {
	// RuntimeID is the unrecognized instance ID.
	RuntimeID record.RuntimeID
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf(
		"no runtime instance with ID '%s'",
		e.RuntimeID,
	)
}

// AlreadyExistsError is the error returned by Create() when an instance with
// the given ID already exists, or existed previously.
//
// Instance IDs are never reused within the lifetime of a runtime.
type AlreadyExistsError struct {
	// RuntimeID is the conflicting instance ID.
	RuntimeID record.RuntimeID
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf(
		"a runtime instance with ID '%s' already exists",
		e.RuntimeID,
	)
}

// TerminatedError is the error returned by operations that target an
// instance that has been terminated.
type TerminatedError struct {
	// RuntimeID is the ID of the terminated instance.
	RuntimeID record.RuntimeID
}

func (e TerminatedError) Error() string {
	return fmt.Sprintf(
		"the runtime instance with ID '%s' has been terminated",
		e.RuntimeID,
	)
}

// MailboxFullError is the error returned by Send() when the target
// instance's mailbox is at capacity and the runtime's overflow policy is
// mailbox.Reject.
type MailboxFullError struct {
	// RuntimeID is the ID of the target instance.
	RuntimeID record.RuntimeID

	// Capacity is the maximum number of records the mailbox can hold.
	Capacity int
}

func (e MailboxFullError) Error() string {
	return fmt.Sprintf(
		"the mailbox of the runtime instance with ID '%s' is full (capacity is %d)",
		e.RuntimeID,
		e.Capacity,
	)
}
