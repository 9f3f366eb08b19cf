package record

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Packer constructs records.
type Packer struct {
	// Source is the identity of the instance on whose behalf records are
	// packed. It is empty for packers used by callers outside the runtime.
	Source RuntimeID

	// GenerateID is a function used to generate new record IDs. If it is
	// nil, a UUID is generated.
	GenerateID func() string

	// Now is a function used to get the current time. If it is nil,
	// time.Now() is used. Creation times produced by a single packer never
	// move backwards.
	Now func() time.Time

	m    sync.Mutex
	last time.Time
}

// PackCommand returns a new command record addressed to the given instance.
//
// The record is the root of a new cause/correlation tree.
func (p *Packer) PackCommand(target RuntimeID, payload []byte) *Record {
	id := p.generateID()

	return p.new(id, id, id, target, CommandType, payload)
}

// PackEvent returns a new event record addressed to the given instance.
//
// The record is the root of a new cause/correlation tree.
func (p *Packer) PackEvent(target RuntimeID, payload []byte) *Record {
	id := p.generateID()

	return p.new(id, id, id, target, EventType, payload)
}

// PackQuery returns a new query record addressed to the given instance.
//
// The record is the root of a new cause/correlation tree.
func (p *Packer) PackQuery(target RuntimeID, payload []byte) *Record {
	id := p.generateID()

	return p.new(id, id, id, target, QueryType, payload)
}

// PackSystem returns a new system record addressed to the given instance.
//
// The record is the root of a new cause/correlation tree.
func (p *Packer) PackSystem(target RuntimeID, payload []byte) *Record {
	id := p.generateID()

	return p.new(id, id, id, target, SystemType, payload)
}

// PackChildCommand returns a new command record addressed to the given
// instance and configured as a child of cause.
func (p *Packer) PackChildCommand(cause *Record, target RuntimeID, payload []byte) *Record {
	return p.new(
		p.generateID(),
		cause.ID,
		correlationOf(cause),
		target,
		CommandType,
		payload,
	)
}

// PackChildEvent returns a new event record addressed to the given instance
// and configured as a child of cause.
func (p *Packer) PackChildEvent(cause *Record, target RuntimeID, payload []byte) *Record {
	return p.new(
		p.generateID(),
		cause.ID,
		correlationOf(cause),
		target,
		EventType,
		payload,
	)
}

// PackResponse returns a new response record addressed to the given instance
// and configured as a child of cause, which is expected to be a query.
func (p *Packer) PackResponse(cause *Record, target RuntimeID, payload []byte) *Record {
	return p.new(
		p.generateID(),
		cause.ID,
		correlationOf(cause),
		target,
		ResponseType,
		payload,
	)
}

// PackStateChange returns a new state-change record describing a committed
// change to the state of the instance that processed cause.
func (p *Packer) PackStateChange(cause *Record, payload []byte) *Record {
	return p.new(
		p.generateID(),
		cause.ID,
		correlationOf(cause),
		cause.RuntimeID,
		StateChangeType,
		payload,
	)
}

// PackError returns a new error record describing a failure to process
// cause.
//
// The record is addressed to the same instance as cause.
func (p *Packer) PackError(cause *Record, failure error) *Record {
	return p.new(
		p.generateID(),
		cause.ID,
		correlationOf(cause),
		cause.RuntimeID,
		ErrorType,
		[]byte(failure.Error()),
	)
}

// new returns a new record.
func (p *Packer) new(
	id string,
	causationID string,
	correlationID string,
	target RuntimeID,
	t Type,
	payload []byte,
) *Record {
	return &Record{
		ID:        id,
		RuntimeID: target,
		CreatedAt: p.now(),
		Type:      t,
		Payload:   payload,
		Meta: Metadata{
			Source:        p.Source,
			CorrelationID: correlationID,
			CausationID:   causationID,
		},
	}
}

// correlationOf returns the correlation ID to use for children of rec.
func correlationOf(rec *Record) string {
	if rec.Meta.CorrelationID != "" {
		return rec.Meta.CorrelationID
	}

	return rec.ID
}

// now returns the current time, clamped so that it never moves backwards
// from one call to the next.
func (p *Packer) now() time.Time {
	now := p.Now
	if now == nil {
		now = time.Now
	}

	t := now()

	p.m.Lock()
	defer p.m.Unlock()

	if t.Before(p.last) {
		t = p.last
	}

	p.last = t

	return t
}

// generateID generates a new record ID.
func (p *Packer) generateID() string {
	if p.GenerateID != nil {
		return p.GenerateID()
	}

	return uuid.New().String()
}
