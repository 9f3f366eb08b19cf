package subscription

import (
	"sync"

	"github.com/dogmatiq/troupe/record"
)

// DefaultBufferSize is the default maximum number of records buffered by
// each subscription.
var DefaultBufferSize = 64

// OverflowPolicy controls how a subscription behaves when records are
// published faster than the subscriber consumes them.
type OverflowPolicy int

const (
	// DropOldest discards the oldest buffered record to make room for the
	// newest.
	DropOldest OverflowPolicy = iota

	// Disconnect closes the subscription. Blocked and future calls to
	// Next() return ErrOverflow.
	Disconnect
)

// Fanout distributes the records produced by an instance to a set of
// subscriptions.
//
// Publishing never blocks. A subscription whose buffer is full is subject to
// the fan-out's overflow policy, so a slow subscriber costs no more than its
// own buffer.
type Fanout struct {
	// BufferSize is the maximum number of records buffered per subscription.
	// If it is non-positive, DefaultBufferSize is used.
	BufferSize int

	// Policy determines how a subscription behaves when its buffer is full.
	Policy OverflowPolicy

	m    sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscribe returns a new subscription that receives every record published
// to the fan-out from now on.
func (f *Fanout) Subscribe() *Subscription {
	s := &Subscription{fanout: f}

	f.m.Lock()
	defer f.m.Unlock()

	if f.subs == nil {
		f.subs = map[*Subscription]struct{}{}
	}

	f.subs[s] = struct{}{}

	return s
}

// Publish delivers recs, in order, to every active subscription.
func (f *Fanout) Publish(recs ...*record.Record) {
	if len(recs) == 0 {
		return
	}

	size := f.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}

	f.m.Lock()
	defer f.m.Unlock()

	for s := range f.subs {
		if !s.deliver(recs, size, f.Policy) {
			delete(f.subs, s)
		}
	}
}

// Close closes every active subscription.
//
// Blocked and future calls to Next() on those subscriptions return
// ErrClosed.
func (f *Fanout) Close() {
	f.m.Lock()
	defer f.m.Unlock()

	for s := range f.subs {
		s.close(ErrClosed)
		delete(f.subs, s)
	}
}

// remove detaches s from the fan-out.
func (f *Fanout) remove(s *Subscription) {
	f.m.Lock()
	defer f.m.Unlock()

	delete(f.subs, s)
}
