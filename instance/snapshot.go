package instance

import (
	"time"

	"github.com/dogmatiq/troupe/record"
)

// Snapshot is a point-in-time view of an instance's state.
//
// The state value itself is owned exclusively by the instance's processing
// loop. External callers receive snapshots, and must treat the State field
// as immutable.
type Snapshot struct {
	// RuntimeID identifies the instance.
	RuntimeID record.RuntimeID

	// State is the application-defined state of the instance, as returned by
	// its most recent successful workflow invocation.
	State any

	// Status is the condition of the instance at the time the snapshot was
	// taken.
	Status Status

	// LastUpdated is the time at which the state was last committed.
	LastUpdated time.Time

	// Version is incremented by each committed state change. It never
	// decreases, so it can be used by subscribers for optimistic consistency
	// checks.
	Version uint64
}
