package fixtures

import (
	"context"
	"sync"

	"github.com/dogmatiq/troupe/instance"
	"github.com/dogmatiq/troupe/record"
)

// PassThroughWorkflow returns a workflow that leaves the state untouched and
// produces no output records.
func PassThroughWorkflow() instance.Workflow {
	return func(
		_ context.Context,
		_ *record.Record,
		state any,
	) (any, []*record.Record, error) {
		return state, nil, nil
	}
}

// WorkflowSpy records the order in which a workflow observes records.
type WorkflowSpy struct {
	m        sync.Mutex
	observed []*record.Record
}

// Wrap returns a workflow that records each observed record before
// dispatching to next.
//
// If next is nil, the returned workflow leaves the state untouched and
// produces no output records.
func (s *WorkflowSpy) Wrap(next instance.Workflow) instance.Workflow {
	return func(
		ctx context.Context,
		rec *record.Record,
		state any,
	) (any, []*record.Record, error) {
		s.m.Lock()
		s.observed = append(s.observed, rec)
		s.m.Unlock()

		if next == nil {
			return state, nil, nil
		}

		return next(ctx, rec, state)
	}
}

// Observed returns the records observed so far, in order.
func (s *WorkflowSpy) Observed() []*record.Record {
	s.m.Lock()
	defer s.m.Unlock()

	return append([]*record.Record(nil), s.observed...)
}
