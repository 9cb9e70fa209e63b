// Package store provides identifier sets and the run history database.
package store

import (
	"github.com/bits-and-blooms/bloom/v3"

	"playlistfiller/internal/core"
)

// DefaultFalsePositiveRate is the bloom prefilter rate used by NewSetFactory
const DefaultFalsePositiveRate = 0.001

// IDSet is a grow-only identifier set. A bloom filter answers most negative lookups
// before the exact map is consulted, so membership is always exact.
// An IDSet is not safe for concurrent use.
type IDSet struct {
	ids   map[string]struct{}
	bloom *bloom.BloomFilter
}

// NewIDSet creates an empty set sized for about capacity identifiers.
func NewIDSet(capacity int, falsePositiveRate float64) *IDSet {
	if capacity < 1 {
		capacity = 1
	}

	return &IDSet{
		ids:   make(map[string]struct{}, capacity),
		bloom: bloom.NewWithEstimates(uint(capacity), falsePositiveRate), //nolint:gosec // capacity is positive
	}
}

// NewSetFactory returns a core.SetFactory producing bloom-backed sets.
func NewSetFactory(falsePositiveRate float64) core.SetFactory {
	return func(capacity int) core.IDSet {
		return NewIDSet(capacity, falsePositiveRate)
	}
}

// Has reports whether id is in the set.
func (s *IDSet) Has(id string) bool {
	if !s.bloom.TestString(id) {
		return false
	}

	_, exists := s.ids[id]
	return exists
}

// Add inserts id and reports whether it was absent. Empty identifiers are never stored.
func (s *IDSet) Add(id string) bool {
	if id == "" {
		return false
	}
	if s.Has(id) {
		return false
	}

	s.ids[id] = struct{}{}
	s.bloom.AddString(id)
	return true
}

// Size returns the number of identifiers stored.
func (s *IDSet) Size() int {
	return len(s.ids)
}
