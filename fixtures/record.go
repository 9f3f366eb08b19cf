package fixtures

import (
	"strconv"
	"sync"
	"time"

	"github.com/dogmatiq/troupe/record"
	"github.com/google/uuid"
)

// DefaultRuntimeID is the default runtime ID for test records.
const DefaultRuntimeID = record.RuntimeID("28c19ec0-a32f-4d06-b6f7-2c15bfa3a480")

// NewRecord returns a new record of the given type containing the given
// payload.
//
// If id is empty, a new UUID is generated.
//
// times can contain up to two elements, the first is the creation time, the
// second is the scheduled-for time.
func NewRecord(
	id string,
	t record.Type,
	payload []byte,
	times ...time.Time,
) *record.Record {
	if id == "" {
		id = uuid.New().String()
	}

	var createdAt, scheduledFor time.Time

	switch len(times) {
	case 0:
		createdAt = time.Now()
	case 1:
		createdAt = times[0]
	case 2:
		createdAt = times[0]
		scheduledFor = times[1]
	default:
		panic("too many times specified")
	}

	cleanseTime(&createdAt)
	cleanseTime(&scheduledFor)

	return &record.Record{
		ID:        id,
		RuntimeID: DefaultRuntimeID,
		CreatedAt: createdAt,
		Type:      t,
		Payload:   payload,
		Meta: record.Metadata{
			Source:        DefaultRuntimeID,
			CorrelationID: "<correlation>",
			CausationID:   "<cause>",
			ScheduledFor:  scheduledFor,
		},
	}
}

// NewPacker returns a record packer that uses a deterministic ID sequence and
// clock.
//
// Record IDs are monotonically increasing integers, starting at 0. Creation
// times start at 2000-01-01 00:00:00 UTC and increase by 1 second for each
// record.
func NewPacker() *record.Packer {
	var (
		m   sync.Mutex
		id  int64
		now = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	)

	return &record.Packer{
		Source: DefaultRuntimeID,
		GenerateID: func() string {
			m.Lock()
			defer m.Unlock()

			v := strconv.FormatInt(id, 10)
			id++

			return v
		},
		Now: func() time.Time {
			m.Lock()
			defer m.Unlock()

			v := now
			now = now.Add(1 * time.Second)

			return v
		},
	}
}

// cleanseTime marshals/unmarshals time to strip any internal state that would
// not survive a round-trip through the store.
func cleanseTime(t *time.Time) {
	if t.IsZero() {
		*t = time.Time{}
		return
	}

	data, err := t.MarshalText()
	if err != nil {
		panic(err)
	}

	err = t.UnmarshalText(data)
	if err != nil {
		panic(err)
	}
}
