package mailbox

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/troupe/internal/x/containerx/pqueue"
	"github.com/dogmatiq/troupe/record"
)

// DefaultCapacity is the default maximum number of records that may be
// queued on a mailbox.
var DefaultCapacity = 100

// A Mailbox is a bounded collection of records that are pending processing
// by a single instance.
//
// Records are delivered in priority order, then in arrival order within each
// priority. A record scheduled for the future is withheld until it falls
// due. A record that outlives its time-to-live while queued is delivered as
// expired, so that the failure can be reported, rather than being processed
// late.
type Mailbox struct {
	capacity int
	policy   OverflowPolicy

	m         sync.Mutex
	seq       uint64
	ready     *pqueue.Queue[*elem] // eligible now, by priority then arrival
	scheduled *pqueue.Queue[*elem] // not yet due, by due time
	expiring  *pqueue.Queue[*elem] // those with a time-to-live, by expiry time
	closed    bool

	wake chan struct{} // signaled when the next delivery may have changed
	room chan struct{} // signaled when capacity is freed
	done chan struct{} // closed when the mailbox is closed
}

// elem is a container for a record queued on a mailbox.
//
// The due and expiry times are fixed when the record is enqueued so that the
// queue orderings never change underneath the heaps.
type elem struct {
	rec    *record.Record
	seq    uint64
	due    time.Time
	expiry time.Time // zero-value if the record never expires
}

// byPriority orders eligible elements by priority, then by arrival.
func byPriority(a, b *elem) bool {
	if a.rec.Meta.Priority != b.rec.Meta.Priority {
		return a.rec.Meta.Priority < b.rec.Meta.Priority
	}

	return a.seq < b.seq
}

// byDueTime orders scheduled elements by the time they fall due.
func byDueTime(a, b *elem) bool {
	if !a.due.Equal(b.due) {
		return a.due.Before(b.due)
	}

	return a.seq < b.seq
}

// byExpiryTime orders elements by the time their time-to-live elapses.
func byExpiryTime(a, b *elem) bool {
	if !a.expiry.Equal(b.expiry) {
		return a.expiry.Before(b.expiry)
	}

	return a.seq < b.seq
}

// New returns a mailbox that holds at most capacity records.
//
// If capacity is non-positive, DefaultCapacity is used.
func New(capacity int, policy OverflowPolicy) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Mailbox{
		capacity:  capacity,
		policy:    policy,
		ready:     pqueue.New(byPriority),
		scheduled: pqueue.New(byDueTime),
		expiring:  pqueue.New(byExpiryTime),
		wake:      make(chan struct{}, 1),
		room:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Put adds rec to the mailbox.
//
// If the mailbox is at capacity and its overflow policy is Block, it blocks
// until room becomes available, the mailbox is closed, or ctx is canceled.
// If the policy is Reject, it fails immediately with a FullError.
func (mb *Mailbox) Put(ctx context.Context, rec *record.Record) error {
	for {
		ok, err := mb.tryPut(rec)
		if ok || err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-mb.done:
			return ErrClosed
		case <-mb.room:
		}
	}
}

// tryPut attempts to add rec to the mailbox without blocking.
//
// It returns false if the mailbox is at capacity and the overflow policy
// requires the caller to wait for room.
func (mb *Mailbox) tryPut(rec *record.Record) (bool, error) {
	mb.m.Lock()
	defer mb.m.Unlock()

	if mb.closed {
		return false, ErrClosed
	}

	if mb.size() >= mb.capacity {
		if mb.policy == Reject {
			return false, FullError{Capacity: mb.capacity}
		}

		return false, nil
	}

	mb.seq++

	e := &elem{
		rec: rec,
		seq: mb.seq,
		due: rec.ScheduledAt(),
	}

	wake := false

	if t, ok := rec.ExpiresAt(); ok {
		e.expiry = t

		if mb.expiring.Push(e) {
			wake = true
		}
	}

	if e.due.After(time.Now()) {
		if mb.scheduled.Push(e) {
			wake = true
		}
	} else if mb.ready.Push(e) {
		wake = true
	}

	if wake {
		mb.signalWake()
	}

	return true, nil
}

// Get removes the next deliverable record from the mailbox.
//
// It blocks until a record is deliverable, the mailbox is closed, or ctx is
// canceled.
//
// expired is true if the record outlived its time-to-live while it was
// queued, in which case it must be reported as a failure rather than
// processed.
func (mb *Mailbox) Get(ctx context.Context) (rec *record.Record, expired bool, err error) {
	for {
		rec, expired, wait, err := mb.next()
		if rec != nil || err != nil {
			return rec, expired, err
		}

		if err := mb.await(ctx, wait); err != nil {
			return nil, false, err
		}
	}
}

// next removes the next deliverable record, if there is one.
//
// If nothing is deliverable, wait is the duration after which the earliest
// scheduled or expiring record falls due, or zero if there is no such
// record.
func (mb *Mailbox) next() (rec *record.Record, expired bool, wait time.Duration, err error) {
	mb.m.Lock()
	defer mb.m.Unlock()

	if mb.closed {
		return nil, false, 0, ErrClosed
	}

	now := time.Now()

	// Records that have outlived their time-to-live are delivered ahead of
	// everything else so that the failure is reported promptly.
	if e, ok := mb.expiring.Peek(); ok && !e.expiry.After(now) {
		mb.expiring.Pop()

		if !mb.ready.Remove(e) {
			mb.scheduled.Remove(e)
		}

		mb.signalRoom()

		return e.rec, true, 0, nil
	}

	// Promote scheduled records that have fallen due.
	for {
		e, ok := mb.scheduled.Peek()
		if !ok || e.due.After(now) {
			break
		}

		mb.scheduled.Pop()
		mb.ready.Push(e)
	}

	if e, ok := mb.ready.Pop(); ok {
		mb.expiring.Remove(e)
		mb.signalRoom()

		return e.rec, false, 0, nil
	}

	// Both queues are known to hold only times after now, so the wait is
	// always positive.
	if e, ok := mb.scheduled.Peek(); ok {
		wait = e.due.Sub(now)
	}

	if e, ok := mb.expiring.Peek(); ok {
		if d := e.expiry.Sub(now); wait == 0 || d < wait {
			wait = d
		}
	}

	return nil, false, wait, nil
}

// await blocks until the next delivery may have changed, d elapses (if it is
// positive), the mailbox is closed, or ctx is canceled.
func (mb *Mailbox) await(ctx context.Context, d time.Duration) error {
	var elapsed <-chan time.Time

	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		elapsed = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-mb.done:
		return ErrClosed
	case <-mb.wake:
		return nil
	case <-elapsed:
		return nil
	}
}

// Len returns the number of records on the mailbox.
func (mb *Mailbox) Len() int {
	mb.m.Lock()
	defer mb.m.Unlock()

	return mb.size()
}

// Close closes the mailbox, discarding any queued records.
//
// Any blocked calls to Put() or Get() are woken, and fail with ErrClosed.
// Close is idempotent.
func (mb *Mailbox) Close() {
	mb.m.Lock()
	defer mb.m.Unlock()

	if mb.closed {
		return
	}

	mb.closed = true
	close(mb.done)
}

// size returns the number of records on the mailbox.
//
// It assumes mb.m is already locked. Elements on the expiring queue are
// always present on one of the other queues, so they are not counted.
func (mb *Mailbox) size() int {
	return mb.ready.Len() + mb.scheduled.Len()
}

// signalWake wakes a blocked Get() call, if there is one.
func (mb *Mailbox) signalWake() {
	select {
	case mb.wake <- struct{}{}:
	default:
	}
}

// signalRoom wakes a blocked Put() call, if there is one.
func (mb *Mailbox) signalRoom() {
	select {
	case mb.room <- struct{}{}:
	default:
	}
}
