package record

import "fmt"

// Type classifies the purpose of a record.
type Type int

const (
	// CommandType is the type of records that request that an instance
	// perform some action.
	CommandType Type = iota

	// EventType is the type of records that describe something that has
	// happened.
	EventType

	// QueryType is the type of records that request information from an
	// instance without causing a state change.
	QueryType

	// ResponseType is the type of records produced in answer to a query.
	ResponseType

	// ErrorType is the type of records that carry a description of a
	// failure.
	ErrorType

	// StateChangeType is the type of records that describe a committed
	// change to an instance's state.
	StateChangeType

	// SystemType is the type of records produced by the runtime itself.
	SystemType
)

// Validate returns an error if t is not a recognized record type.
func (t Type) Validate() error {
	if t < CommandType || t > SystemType {
		return fmt.Errorf("unrecognized record type (%d)", int(t))
	}

	return nil
}

// String returns a human-readable name for the record type.
func (t Type) String() string {
	switch t {
	case CommandType:
		return "command"
	case EventType:
		return "event"
	case QueryType:
		return "query"
	case ResponseType:
		return "response"
	case ErrorType:
		return "error"
	case StateChangeType:
		return "state-change"
	case SystemType:
		return "system"
	default:
		return fmt.Sprintf("unrecognized record type (%d)", int(t))
	}
}
