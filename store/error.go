package store

import (
	"fmt"
)

// DuplicateIDError is the error returned by Append() when a record's ID is
// already present in the store.
type DuplicateIDError struct {
	// ID is the conflicting record ID.
	ID string
}

func (e DuplicateIDError) Error() string {
	return fmt.Sprintf(
		"record with ID '%s' already exists",
		e.ID,
	)
}

// UnknownRecordError is the error returned when a record referenced by its
// ID does not exist.
type UnknownRecordError struct {
	// ID is the unrecognized record ID.
	ID string
}

func (e UnknownRecordError) Error() string {
	return fmt.Sprintf(
		"record with ID '%s' does not exist",
		e.ID,
	)
}
