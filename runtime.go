// Package troupe provides a runtime for independent, stateful, message-driven
// instances.
//
// Each instance owns a priority-ordered mailbox of pending records and a
// processing loop that drains it, one record at a time, through an
// application-defined workflow function. Records an instance produces are
// fanned out to its subscribers and, when marked persistent, appended to a
// durable activity store.
package troupe

import (
	"context"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/troupe/instance"
	"github.com/dogmatiq/troupe/internal/x/loggingx"
	"github.com/dogmatiq/troupe/mailbox"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/semaphore"
	"github.com/dogmatiq/troupe/store"
	"github.com/dogmatiq/troupe/subscription"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Runtime creates, schedules and supervises instances, and routes records
// between them and external callers.
//
// It is constructed explicitly with New() and passed by reference to its
// collaborators; there is no ambient process-wide runtime.
type Runtime struct {
	opts *options
	sem  semaphore.Semaphore

	m         sync.Mutex
	instances map[record.RuntimeID]*entry
	reserved  map[record.RuntimeID]struct{}
	store     store.Store
	stopped   bool
}

// entry associates a live instance with the resources that the runtime
// manages on its behalf.
type entry struct {
	inst        *instance.Instance
	mailbox     *mailbox.Mailbox
	subscribers *subscription.Fanout
	cancel      context.CancelFunc
	done        chan struct{} // closed once the processing loop has stopped
}

// New returns a new runtime.
func New(fns ...Option) *Runtime {
	opts := resolveOptions(fns...)

	return &Runtime{
		opts:      opts,
		sem:       semaphore.New(int(opts.ConcurrencyLimit)),
		instances: map[record.RuntimeID]*entry{},
		reserved:  map[record.RuntimeID]struct{}{},
	}
}

// Create registers a new instance and starts its processing loop
// immediately.
//
// initial is the state of the instance before any record has been processed.
// w is the workflow invoked for each record delivered to the instance.
//
// It returns an AlreadyExistsError if an instance with the same ID exists or
// existed previously; the existing instance is left untouched.
func (r *Runtime) Create(
	id record.RuntimeID,
	initial any,
	w instance.Workflow,
) (*Handle, error) {
	if w == nil {
		panic("workflow must not be nil")
	}

	if err := id.Validate(); err != nil {
		return nil, err
	}

	r.m.Lock()
	defer r.m.Unlock()

	if r.stopped {
		return nil, ErrRuntimeStopped
	}

	if _, ok := r.instances[id]; ok {
		return nil, AlreadyExistsError{id}
	}

	if _, ok := r.reserved[id]; ok {
		return nil, AlreadyExistsError{id}
	}

	st, err := r.openStore()
	if err != nil {
		return nil, err
	}

	e := &entry{
		mailbox: mailbox.New(
			r.opts.MailboxCapacity,
			r.opts.OverflowPolicy,
		),
		subscribers: &subscription.Fanout{
			BufferSize: r.opts.SubscriptionBufferSize,
			Policy:     r.opts.SubscriptionPolicy,
		},
		done: make(chan struct{}),
	}

	e.inst = &instance.Instance{
		ID:           id,
		InitialState: initial,
		Workflow:     w,
		Mailbox:      e.mailbox,
		Subscribers:  e.subscribers,
		Store:        st,
		Packer: &record.Packer{
			Source: id,
		},
		Semaphore:      &r.sem,
		MessageTimeout: r.opts.MessageTimeout,
		GracePeriod:    r.opts.TerminationGracePeriod,
		Logger: loggingx.WithPrefix(
			r.opts.Logger,
			"[%s] ",
			id,
		),
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	r.instances[id] = e

	go func() {
		if err := e.inst.Run(ctx); err != nil && ctx.Err() == nil {
			logging.Log(
				r.opts.Logger,
				"[%s] processing loop stopped: %s",
				id,
				err,
			)
		}

		r.retire(id, e)
		close(e.done)
	}()

	logging.Debug(
		r.opts.Logger,
		"[%s] instance created",
		id,
	)

	return &Handle{r, id}, nil
}

// Send enqueues rec on the mailbox of the instance with the given ID.
//
// It does not wait for the record to be processed. If the mailbox is at
// capacity the call blocks or fails with a MailboxFullError, according to
// the runtime's overflow policy.
//
// If rec does not name a target instance it is addressed to id in place.
func (r *Runtime) Send(
	ctx context.Context,
	id record.RuntimeID,
	rec *record.Record,
) error {
	if rec == nil {
		panic("record must not be nil")
	}

	e, err := r.resolve(id)
	if err != nil {
		return err
	}

	if rec.RuntimeID == "" {
		rec.RuntimeID = id
	}

	if err := rec.Validate(); err != nil {
		return err
	}

	if err := e.mailbox.Put(ctx, rec); err != nil {
		switch err := err.(type) {
		case mailbox.FullError:
			return MailboxFullError{
				RuntimeID: id,
				Capacity:  err.Capacity,
			}
		default:
			if err == mailbox.ErrClosed {
				// The instance was terminated after it was resolved, or
				// while the call was blocked waiting for room.
				return TerminatedError{id}
			}

			return err
		}
	}

	return nil
}

// GetState returns a snapshot of the state of the instance with the given
// ID.
//
// The snapshot is atomic; it never exposes a partially-committed state.
func (r *Runtime) GetState(id record.RuntimeID) (instance.Snapshot, error) {
	e, err := r.resolve(id)
	if err != nil {
		return instance.Snapshot{}, err
	}

	return e.inst.Snapshot(), nil
}

// Subscribe returns a new subscription to the records produced by the
// instance with the given ID.
//
// Any number of concurrent subscriptions may exist for the same instance;
// they are independent of one another.
func (r *Runtime) Subscribe(id record.RuntimeID) (*subscription.Subscription, error) {
	e, err := r.resolve(id)
	if err != nil {
		return nil, err
	}

	return e.subscribers.Subscribe(), nil
}

// Terminate stops the instance with the given ID and removes it from the
// runtime.
//
// Any records remaining on the instance's mailbox are discarded and its
// subscriptions are closed. An in-flight workflow invocation is allowed to
// finish within the termination grace period, after which it is abandoned.
//
// It blocks until the instance has stopped or ctx is canceled. Terminating
// an instance that has already been terminated succeeds immediately; the ID
// remains reserved.
func (r *Runtime) Terminate(ctx context.Context, id record.RuntimeID) error {
	e, err := r.resolve(id)
	if err != nil {
		if _, ok := err.(TerminatedError); ok {
			return nil
		}

		return err
	}

	e.cancel()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
	}

	logging.Debug(
		r.opts.Logger,
		"[%s] instance terminated",
		id,
	)

	return nil
}

// Shutdown terminates all live instances and closes the activity store.
//
// Once it returns, all runtime operations fail with ErrRuntimeStopped.
// Shutting down a runtime that has already been shut down has no effect.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.m.Lock()

	if r.stopped {
		r.m.Unlock()
		return nil
	}

	r.stopped = true

	entries := make([]*entry, 0, len(r.instances))
	for _, e := range r.instances {
		entries = append(entries, e)
	}

	st := r.store
	r.m.Unlock()

	g, ctx := errgroup.WithContext(ctx)

	for _, e := range entries {
		e := e // capture loop variable

		g.Go(func() error {
			e.cancel()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.done:
				return nil
			}
		})
	}

	err := g.Wait()

	if st != nil {
		err = multierr.Append(err, st.Close())
	}

	logging.Debug(r.opts.Logger, "runtime stopped")

	return err
}

// Run hosts the runtime until ctx is canceled.
//
// It then shuts the runtime down gracefully and returns the error that
// canceled ctx.
func (r *Runtime) Run(ctx context.Context) error {
	<-ctx.Done()

	return multierr.Append(
		ctx.Err(),
		r.Shutdown(context.Background()),
	)
}

// ActivityStore returns the activity store used to persist records.
//
// It is intended for consumers outside the runtime, such as replication
// processes and audit queries; instances append to the store as part of
// record processing.
func (r *Runtime) ActivityStore(ctx context.Context) (store.Store, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	r.m.Lock()
	defer r.m.Unlock()

	if r.stopped {
		return nil, ErrRuntimeStopped
	}

	return r.openStore()
}

// resolve returns the entry for the live instance with the given ID.
func (r *Runtime) resolve(id record.RuntimeID) (*entry, error) {
	r.m.Lock()
	defer r.m.Unlock()

	if r.stopped {
		return nil, ErrRuntimeStopped
	}

	if e, ok := r.instances[id]; ok {
		return e, nil
	}

	if _, ok := r.reserved[id]; ok {
		return nil, TerminatedError{id}
	}

	return nil, NotFoundError{id}
}

// retire removes a stopped instance from the live map, reserving its ID so
// that it is never reused.
func (r *Runtime) retire(id record.RuntimeID, e *entry) {
	r.m.Lock()
	defer r.m.Unlock()

	if r.instances[id] == e {
		delete(r.instances, id)
		r.reserved[id] = struct{}{}
	}
}

// openStore opens the activity store on first use.
//
// It assumes r.m is already locked.
func (r *Runtime) openStore() (store.Store, error) {
	if r.store == nil {
		st, err := r.opts.StoreProvider.Open(context.Background())
		if err != nil {
			return nil, err
		}

		r.store = st
	}

	return r.store, nil
}
