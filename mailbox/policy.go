package mailbox

import (
	"errors"
	"fmt"
)

// OverflowPolicy controls how a mailbox behaves when a record is put while
// the mailbox is at capacity.
type OverflowPolicy int

const (
	// Block causes Put() to wait until room becomes available.
	Block OverflowPolicy = iota

	// Reject causes Put() to fail immediately with a FullError.
	Reject
)

// ErrClosed is returned by operations performed on a mailbox that has been
// closed.
var ErrClosed = errors.New("mailbox is closed")

// FullError is the error returned by Put() when the mailbox is at capacity
// and its overflow policy is Reject.
type FullError struct {
	// Capacity is the maximum number of records the mailbox can hold.
	Capacity int
}

func (e FullError) Error() string {
	return fmt.Sprintf(
		"mailbox is full (capacity is %d)",
		e.Capacity,
	)
}
