package instance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/troupe/mailbox"
	"github.com/dogmatiq/troupe/record"
	"github.com/dogmatiq/troupe/semaphore"
	"github.com/dogmatiq/troupe/store"
	"github.com/dogmatiq/troupe/subscription"
)

var (
	// DefaultMessageTimeout is the default duration an instance allows for a
	// single workflow invocation, used when the record being processed does
	// not carry its own time-to-live.
	DefaultMessageTimeout = 5 * time.Second

	// DefaultGracePeriod is the default duration an instance waits for an
	// in-flight workflow invocation when it is terminated, before the
	// invocation is abandoned.
	DefaultGracePeriod = 5 * time.Second
)

// An Instance is a single stateful, message-driven unit of the runtime.
//
// Its processing loop drains its mailbox one record at a time, invokes the
// workflow against the current state, commits the state the workflow
// returns, and fans the workflow's output records out to subscribers and the
// activity store.
type Instance struct {
	// ID uniquely identifies the instance.
	ID record.RuntimeID

	// InitialState is the state of the instance before any record has been
	// processed.
	InitialState any

	// Workflow is the state-transition function invoked for each record.
	Workflow Workflow

	// Mailbox is the queue of records pending processing by the instance.
	// It is closed when the instance stops.
	Mailbox *mailbox.Mailbox

	// Subscribers receives every record the instance produces. It is closed
	// when the instance stops.
	Subscribers *subscription.Fanout

	// Store is the activity store that retains the instance's persistent
	// records.
	Store store.Store

	// Packer is used to pack the error records produced when processing
	// fails.
	Packer *record.Packer

	// Semaphore limits the number of workflow invocations that may proceed
	// concurrently across the runtime.
	Semaphore *semaphore.Semaphore

	// MessageTimeout is the maximum duration of a single workflow invocation
	// for records without a time-to-live. If it is zero,
	// DefaultMessageTimeout is used.
	MessageTimeout time.Duration

	// GracePeriod is the duration an in-flight workflow invocation is
	// allowed to continue after the instance is terminated. If it is zero,
	// DefaultGracePeriod is used.
	GracePeriod time.Duration

	// Logger is the target for messages about the progress of the instance.
	Logger logging.Logger

	once sync.Once
	m    sync.Mutex
	snap Snapshot
}

// errAbandoned indicates that a workflow invocation outlived the termination
// grace period.
var errAbandoned = errors.New("workflow invocation abandoned")

// Run processes records from the instance's mailbox until ctx is canceled or
// the workflow reports a fatal error.
//
// When it returns, the mailbox and all subscriptions are closed and the
// instance's status is Terminated. It never returns before the record being
// processed at the time of cancellation is resolved, so a state commit is
// never left half-applied.
func (i *Instance) Run(ctx context.Context) error {
	i.init()

	defer func() {
		i.Mailbox.Close()
		i.Subscribers.Close()
		i.setStatus(Terminated)
	}()

	logging.Debug(i.Logger, "processing loop started")

	for {
		rec, expired, err := i.Mailbox.Get(ctx)
		if err != nil {
			if errors.Is(err, mailbox.ErrClosed) {
				return nil
			}

			return err
		}

		if expired {
			i.reportFailure(rec, fmt.Errorf(
				"record expired %s before processing",
				time.Since(rec.CreatedAt.Add(rec.Meta.Timeout)),
			))

			continue
		}

		if err := i.process(ctx, rec); err != nil {
			return err
		}
	}
}

// Snapshot returns a point-in-time view of the instance's state.
func (i *Instance) Snapshot() Snapshot {
	i.init()

	i.m.Lock()
	defer i.m.Unlock()

	return i.snap
}

// init populates the initial snapshot.
func (i *Instance) init() {
	i.once.Do(func() {
		i.snap = Snapshot{
			RuntimeID:   i.ID,
			State:       i.InitialState,
			Status:      Idle,
			LastUpdated: time.Now(),
		}
	})
}

// process handles a single record.
//
// It returns a non-nil error only if the instance must stop, that is, if the
// workflow reported a fatal error or the invocation was abandoned after ctx
// was canceled. An ordinary workflow failure is reported to subscribers and
// a nil error is returned.
func (i *Instance) process(ctx context.Context, rec *record.Record) error {
	i.setStatus(Processing)

	next, outputs, err := i.invoke(ctx, rec)
	if err != nil {
		if errors.Is(err, errAbandoned) {
			logging.Log(
				i.Logger,
				"abandoned processing of record %s: termination grace period elapsed",
				rec.ID,
			)

			return ctx.Err()
		}

		i.setStatus(Errored)
		i.reportFailure(rec, err)

		var fatal FatalError
		if errors.As(err, &fatal) {
			logging.Log(
				i.Logger,
				"terminating due to fatal error while processing record %s: %s",
				rec.ID,
				fatal.Cause,
			)

			return fatal
		}

		return nil
	}

	rec.Meta.Processed = true
	i.commit(next)
	i.persist(rec, outputs)
	i.Subscribers.Publish(outputs...)

	logging.Debug(
		i.Logger,
		"processed %s record %s",
		rec.Type,
		rec.ID,
	)

	return nil
}

// invoke calls the workflow with rec and the instance's current state.
//
// The invocation is bounded by the record's remaining time-to-live, or by
// the instance's message timeout if the record does not expire. If ctx is
// canceled while the invocation is in flight, the invocation is given the
// grace period to finish, after which its context is canceled and
// errAbandoned is returned without waiting for it.
func (i *Instance) invoke(
	ctx context.Context,
	rec *record.Record,
) (any, []*record.Record, error) {
	if i.Semaphore != nil {
		if err := i.Semaphore.Acquire(ctx); err != nil {
			return nil, nil, errAbandoned
		}
	}

	// The invocation's context deliberately does not descend from ctx.
	// Termination must not cancel an in-flight invocation until the grace
	// period has elapsed.
	wctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ttl time.Duration
	if expiry, ok := rec.ExpiresAt(); ok {
		if ttl = time.Until(expiry); ttl < 0 {
			ttl = 0
		}
	}

	wctx, cancelTimeout := linger.ContextWithTimeout(
		wctx,
		ttl,
		i.MessageTimeout,
		DefaultMessageTimeout,
	)
	defer cancelTimeout()

	type result struct {
		state   any
		outputs []*record.Record
		err     error
	}

	results := make(chan result, 1)

	go func() {
		if i.Semaphore != nil {
			defer i.Semaphore.Release()
		}

		state, outputs, err := i.Workflow(wctx, rec, i.currentState())
		results <- result{state, outputs, err}
	}()

	select {
	case r := <-results:
		return r.state, r.outputs, r.err
	case <-ctx.Done():
	}

	grace := time.NewTimer(
		linger.MustCoalesce(i.GracePeriod, DefaultGracePeriod),
	)
	defer grace.Stop()

	select {
	case r := <-results:
		return r.state, r.outputs, r.err
	case <-grace.C:
		cancel()
		return nil, nil, errAbandoned
	}
}

// persist appends the processed record and its outputs to the activity
// store, if they are marked persistent.
//
// A store failure does not stop the instance. It is logged and reported to
// subscribers as an error record; the records simply remain unpersisted.
func (i *Instance) persist(rec *record.Record, outputs []*record.Record) {
	var recs []*record.Record

	if rec.Meta.Persistent {
		recs = append(recs, rec)
	}

	for _, out := range outputs {
		if out.Meta.Persistent {
			recs = append(recs, out)
		}
	}

	if len(recs) == 0 {
		return
	}

	// The append is bounded by the message timeout rather than the run
	// context, so that a termination that arrives mid-commit can not produce
	// a partial append.
	ctx, cancel := linger.ContextWithTimeout(
		context.Background(),
		i.MessageTimeout,
		DefaultMessageTimeout,
	)
	defer cancel()

	if err := i.Store.Append(ctx, recs...); err != nil {
		i.reportFailure(rec, fmt.Errorf(
			"unable to append to the activity store: %w",
			err,
		))
	}
}

// reportFailure publishes an error record describing a failure to process
// rec.
func (i *Instance) reportFailure(rec *record.Record, err error) {
	logging.Log(
		i.Logger,
		"failed to process record %s: %s",
		rec.ID,
		err,
	)

	i.Subscribers.Publish(
		i.Packer.PackError(rec, err),
	)
}

// currentState returns the instance's current state.
func (i *Instance) currentState() any {
	i.m.Lock()
	defer i.m.Unlock()

	return i.snap.State
}

// commit replaces the instance's state with the state returned by a
// successful workflow invocation.
//
// The version is incremented even if the state value is unchanged; a commit
// occurs for every successfully processed record.
func (i *Instance) commit(state any) {
	i.m.Lock()
	defer i.m.Unlock()

	i.snap.State = state
	i.snap.Status = Idle
	i.snap.Version++
	i.snap.LastUpdated = time.Now()
}

// setStatus updates the instance's status.
//
// Terminated is final; once set, no other status is ever observed.
func (i *Instance) setStatus(s Status) {
	i.m.Lock()
	defer i.m.Unlock()

	if i.snap.Status != Terminated {
		i.snap.Status = s
	}
}
