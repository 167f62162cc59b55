// Package codec is the opaque argument/reply marshaler used by the network
// fabric. It exposes exactly two operations, encode and decode, and promises
// nothing about wire stability across versions of this binary.
package codec

import (
	"bytes"
	"encoding/gob"
)

// Encode serializes v into a self-describing byte slice. v is typically a
// pointer to one of the RPC argument or reply structs in package kvshard.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes b into v, which must be a pointer to a value of the
// same concrete type given to the matching Encode call.
func Decode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
