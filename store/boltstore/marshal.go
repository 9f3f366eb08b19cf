package boltstore

import (
	"encoding/binary"
	"fmt"

	"github.com/dogmatiq/troupe/internal/x/bboltx"
	"github.com/dogmatiq/troupe/store"
)

// marshalOffset marshals a record offset to its binary representation.
func marshalOffset(o uint64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, o)
	return data
}

// unmarshalOffset unmarshals a record offset from its binary representation.
func unmarshalOffset(data []byte) uint64 {
	n := len(data)

	switch n {
	case 0:
		return 0
	case 8:
		return binary.BigEndian.Uint64(data)
	default:
		panic(bboltx.PanicSentinel{
			Cause: fmt.Errorf("offset data is corrupt, expected 8 bytes, got %d", n),
		})
	}
}

// marshalSyncStatus marshals a synchronization status to its binary
// representation.
func marshalSyncStatus(s store.SyncStatus) []byte {
	return []byte{byte(s)}
}

// unmarshalSyncStatus unmarshals a synchronization status from its binary
// representation.
func unmarshalSyncStatus(data []byte) store.SyncStatus {
	if len(data) != 1 {
		panic(bboltx.PanicSentinel{
			Cause: fmt.Errorf("status data is corrupt, expected 1 byte, got %d", len(data)),
		})
	}

	return store.SyncStatus(data[0])
}
