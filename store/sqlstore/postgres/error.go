package postgres

import (
	"context"
	"errors"

	"github.com/lib/pq"
)

// convertContextErrors converts PostgreSQL "query_canceled" errors into a
// context.Canceled or DeadlineExceeded error.
//
// The native driver reports a cancelation that arrives while a query is in
// flight as a server-side error rather than the context's own error.
func convertContextErrors(ctx context.Context, err error) error {
	if e, ok := unwrapError(err); ok {
		if e.Code.Name() == "query_canceled" {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}

	return err
}

// unwrapError returns a *pq.Error if err is either a pq.Error or *pq.Error.
//
// It appears as though *pq.Error is returned from the methods of the native
// SQL driver, however the Error() method has a non-pointer receiver, so a
// pq.Error (non-pointer) also satisfies the Error interface.
func unwrapError(err error) (*pq.Error, bool) {
	e := &pq.Error{}

	if errors.As(err, e) ||
		errors.As(err, &e) {
		return e, true
	}

	return nil, false
}
