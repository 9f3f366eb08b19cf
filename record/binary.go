package record

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoding configuration used to produce binary record
// representations. Creation times are encoded as tagged RFC-3339 strings so
// that sub-second precision survives a round-trip.
var encMode = func() cbor.EncMode {
	m, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic(err)
	}

	return m
}()

// MarshalBinary marshals rec to its binary representation.
func MarshalBinary(rec *Record) ([]byte, error) {
	return encMode.Marshal(rec)
}

// MustMarshalBinary marshals rec to its binary representation, or panics if
// it is unable to do so.
func MustMarshalBinary(rec *Record) []byte {
	data, err := MarshalBinary(rec)
	if err != nil {
		panic(err)
	}

	return data
}

// UnmarshalBinary unmarshals a record from its binary representation.
func UnmarshalBinary(data []byte, rec *Record) error {
	if err := cbor.Unmarshal(data, rec); err != nil {
		return err
	}

	return rec.Validate()
}
