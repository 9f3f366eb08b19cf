package record

import "fmt"

// Priority determines the order in which queued records are attended to,
// before arrival order is considered.
//
// A numerically lower priority is more urgent. The zero-value is Normal, so
// that records which do not specify a priority are treated normally.
type Priority int

const (
	// High priority records are processed before records of any other
	// priority.
	High Priority = -1

	// Normal is the default priority.
	Normal Priority = 0

	// Low priority records are processed only when no high or normal
	// priority records are eligible.
	Low Priority = 1

	// Background priority records are processed last.
	Background Priority = 2
)

// Validate returns an error if p is not a recognized priority.
func (p Priority) Validate() error {
	if p < High || p > Background {
		return fmt.Errorf("unrecognized priority (%d)", int(p))
	}

	return nil
}

// String returns a human-readable name for the priority.
func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	case Background:
		return "background"
	default:
		return fmt.Sprintf("unrecognized priority (%d)", int(p))
	}
}
