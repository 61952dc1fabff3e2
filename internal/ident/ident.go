package ident

import (
	"encoding/hex"
	"fmt"
)

// Size is the length of a PromiseID in bytes (256 bits).
const Size = 32

// PromiseID is an opaque 256-bit promise identifier.
//
// The zero value is reserved and never assigned to a promise.
type PromiseID [Size]byte

// String returns the id as lowercase hex (64 characters).
func (id PromiseID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the id is the reserved zero value.
func (id PromiseID) IsZero() bool {
	return id == PromiseID{}
}

// Short returns the first 8 hex characters, for log output.
func (id PromiseID) Short() string {
	return hex.EncodeToString(id[:4])
}

// MarshalText implements encoding.TextMarshaler (hex form).
// Promise ids cross environment boundaries inside JSON message
// bodies, so the wire form must be stable.
func (id PromiseID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *PromiseID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Parse decodes a 64-character hex string into a PromiseID.
func Parse(s string) (PromiseID, error) {
	var id PromiseID
	if len(s) != Size*2 {
		return id, fmt.Errorf("parse promise id: expected %d hex characters, got %d", Size*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse promise id: %w", err)
	}
	copy(id[:], b)
	return id, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParse(s string) PromiseID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}
