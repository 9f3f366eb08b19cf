package troupe

import (
	"context"

	"github.com/dogmatiq/troupe/instance"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/subscription"
)

// A Handle is a reference to an instance hosted by a runtime.
//
// It is obtained from the runtime's Create() method and remains valid, but
// failing, after the instance is terminated.
type Handle struct {
	runtime *Runtime
	id      record.RuntimeID
}

// ID returns the ID of the instance the handle refers to.
func (h *Handle) ID() record.RuntimeID {
	return h.id
}

// Send enqueues rec on the instance's mailbox.
func (h *Handle) Send(ctx context.Context, rec *record.Record) error {
	return h.runtime.Send(ctx, h.id, rec)
}

// State returns a snapshot of the instance's state.
func (h *Handle) State() (instance.Snapshot, error) {
	return h.runtime.GetState(h.id)
}

// Subscribe returns a new subscription to the records produced by the
// instance.
func (h *Handle) Subscribe() (*subscription.Subscription, error) {
	return h.runtime.Subscribe(h.id)
}

// Terminate stops the instance and removes it from the runtime.
func (h *Handle) Terminate(ctx context.Context) error {
	return h.runtime.Terminate(ctx, h.id)
}
