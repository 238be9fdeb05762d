// Package idgen wraps ID generation behind a small interface so it can
// be swapped for a deterministic sequence in tests.
package idgen

import (
	"strconv"

	"github.com/google/uuid"
)

// Source produces opaque unique identifiers.
type Source interface {
	NewID() string
}

// UUIDSource generates random UUIDv4 strings via google/uuid.
type UUIDSource struct{}

func (UUIDSource) NewID() string { return uuid.New().String() }

var _ Source = UUIDSource{}

// Sequence is a deterministic test double that returns "node-0",
// "node-1", ... in order, so fixture trees have stable, readable IDs.
type Sequence struct {
	prefix string
	n      int
}

// NewSequence creates a Sequence with the given ID prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) NewID() string {
	id := s.prefix + strconv.Itoa(s.n)
	s.n++
	return id
}
