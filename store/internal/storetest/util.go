package storetest

import "github.com/dogmatiq/troupe/record"

// persisted returns a copy of rec as it is expected to appear when read back
// from a store.
func persisted(rec *record.Record) *record.Record {
	stored := *rec
	stored.Meta.Persistent = true

	return &stored
}
