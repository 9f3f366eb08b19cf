package instance

import "fmt"

// Status describes the condition of a runtime instance.
type Status int

const (
	// Idle is the status of an instance that is waiting for its next record.
	Idle Status = iota

	// Processing is the status of an instance that is handling a record.
	Processing

	// Errored is the status of an instance whose most recent workflow
	// invocation failed. The instance continues to process records; the
	// status is cleared by the next successful commit.
	Errored

	// Terminated is the status of an instance that has stopped, either
	// because it was terminated or because its workflow reported a fatal
	// error. It is final.
	Terminated
)

// Validate returns an error if s is not a recognized status.
func (s Status) Validate() error {
	if s < Idle || s > Terminated {
		return fmt.Errorf("unrecognized status (%d)", int(s))
	}

	return nil
}

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Errored:
		return "errored"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("unrecognized status (%d)", int(s))
	}
}
