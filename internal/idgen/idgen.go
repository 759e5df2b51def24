// Package idgen provides the IdGen capability (domain.IdGen): opaque
// 128-bit identifiers backed by google/uuid, the same id library the
// teacher repo uses throughout.
package idgen

import "github.com/google/uuid"

// UUID is the production IdGen, generating random (v4) ids.
type UUID struct{}

func (UUID) NewID() uuid.UUID { return uuid.New() }

// Sequence is a deterministic IdGen for tests: it hands out v5 ids derived
// from an incrementing counter, so test assertions can predict ids without
// depending on randomness.
type Sequence struct {
	next uint64
}

// NewSequence returns a Sequence starting at 1.
func NewSequence() *Sequence {
	return &Sequence{next: 1}
}

func (s *Sequence) NewID() uuid.UUID {
	var data [8]byte
	n := s.next
	s.next++
	for i := 7; i >= 0; i-- {
		data[i] = byte(n)
		n >>= 8
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, data[:])
}
