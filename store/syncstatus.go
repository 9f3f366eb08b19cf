package store

import "fmt"

// SyncStatus describes how far a record has progressed towards replication
// to a remote store.
//
// The replication itself is performed by a separate synchronization process;
// the store only records its bookkeeping.
type SyncStatus int

const (
	// LocalOnly is the status of a record that exists only in this store.
	// It is the status of every record when it is first appended.
	LocalOnly SyncStatus = iota + 1

	// SyncPending is the status of a record that has been offered to the
	// remote store but not yet acknowledged.
	SyncPending

	// Synced is the status of a record that the remote store has
	// acknowledged.
	Synced
)

// Validate returns an error if s is not a recognized synchronization status.
func (s SyncStatus) Validate() error {
	if s < LocalOnly || s > Synced {
		return fmt.Errorf("unrecognized sync status (%d)", int(s))
	}

	return nil
}

// String returns a human-readable name for the synchronization status.
func (s SyncStatus) String() string {
	switch s {
	case LocalOnly:
		return "local-only"
	case SyncPending:
		return "pending"
	case Synced:
		return "synced"
	default:
		return fmt.Sprintf("unrecognized sync status (%d)", int(s))
	}
}
