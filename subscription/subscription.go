package subscription

import (
	"context"
	"errors"
	"sync"

	"github.com/dogmatiq/troupe/record"
)

// ErrClosed is returned by Next() if the subscription has been closed,
// either by the subscriber or because the instance was terminated.
var ErrClosed = errors.New("subscription is closed")

// ErrOverflow is returned by Next() if the subscription was closed because
// records were published faster than the subscriber consumed them.
var ErrOverflow = errors.New("subscription buffer overflowed")

// A Subscription is a caller-owned stream of the records produced by one
// instance after the subscription began.
//
// There is no historical replay; records produced before the subscription
// began are obtained from the activity store instead.
type Subscription struct {
	fanout *Fanout

	m      sync.Mutex
	buf    []*record.Record
	ready  chan struct{} // closed when a record is published, nil otherwise
	reason error         // non-nil once the subscription is closed
}

// Next returns the next record produced by the instance.
//
// If there are no buffered records it blocks until one is published, the
// subscription is closed, or ctx is canceled.
func (s *Subscription) Next(ctx context.Context) (*record.Record, error) {
	for {
		rec, ready, err := s.get()
		if rec != nil || err != nil {
			return rec, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ready:
		}
	}
}

// Close stops the subscription.
//
// Any blocked or future calls to Next() return ErrClosed. It returns
// ErrClosed if the subscription is already closed.
func (s *Subscription) Close() error {
	if s.fanout != nil {
		s.fanout.remove(s)
	}

	return s.close(ErrClosed)
}

// get returns the next buffered record, or if the buffer is empty, a "ready"
// channel that is closed when a record is published or the subscription is
// closed.
func (s *Subscription) get() (*record.Record, <-chan struct{}, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.reason != nil {
		return nil, nil, s.reason
	}

	if len(s.buf) > 0 {
		rec := s.buf[0]
		s.buf[0] = nil // avoid memory leak
		s.buf = s.buf[1:]

		return rec, nil, nil
	}

	if s.ready == nil {
		s.ready = make(chan struct{})
	}

	return nil, s.ready, nil
}

// deliver appends records to the subscription's buffer.
//
// It returns false if the subscription was disconnected because the buffer
// overflowed.
func (s *Subscription) deliver(
	recs []*record.Record,
	size int,
	policy OverflowPolicy,
) bool {
	s.m.Lock()
	defer s.m.Unlock()

	if s.reason != nil {
		return false
	}

	for _, rec := range recs {
		if len(s.buf) >= size {
			if policy == Disconnect {
				s.closeLocked(ErrOverflow)
				return false
			}

			s.buf[0] = nil // avoid memory leak
			s.buf = s.buf[1:]
		}

		s.buf = append(s.buf, rec)
	}

	if s.ready != nil {
		close(s.ready)
		s.ready = nil
	}

	return true
}

// close marks the subscription as closed for the given reason.
func (s *Subscription) close(reason error) error {
	s.m.Lock()
	defer s.m.Unlock()

	return s.closeLocked(reason)
}

// closeLocked marks the subscription as closed for the given reason.
//
// It assumes s.m is already locked. It returns ErrClosed if the subscription
// is already closed.
func (s *Subscription) closeLocked(reason error) error {
	if s.reason != nil {
		return ErrClosed
	}

	s.reason = reason

	if s.ready != nil {
		close(s.ready)
		s.ready = nil
	}

	return nil
}
