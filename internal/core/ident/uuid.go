package ident

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// UUID is a 128-bit identity, rendered in canonical hyphenated hex form.
// Equality and ordering are by byte value.
type UUID = uuid.UUID

// ErrInvalidUUID indicates a string that does not parse as a UUID.
var ErrInvalidUUID = errors.New("invalid UUID")

// NewUUID returns a freshly generated random UUID.
func NewUUID() UUID {
	return uuid.New()
}

// ParseUUID parses a canonical hyphenated UUID string. The round trip
// ParseUUID(s).String() yields the canonical (lowercase) form of s.
func ParseUUID(s string) (UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidUUID, s)
	}
	return id, nil
}

// CompareUUID orders two UUIDs by byte value. It returns -1, 0, or 1.
func CompareUUID(a, b UUID) int {
	return bytes.Compare(a[:], b[:])
}
