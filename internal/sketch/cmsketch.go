package sketch

import (
	"github.com/jitterbench/jitterbench/internal/flowkey"
	"github.com/jitterbench/jitterbench/internal/jhash"
)

// CMSketch is a d x w 32-bit counter matrix with d independent hashes
// (Count-Min sketch). No decay: counters only increase, matching
// spec.md §4.5.
type CMSketch struct {
	counters [][]uint32
	hs       []jhash.BOBHash32
	w        int
	d        int
}

// NewCMSketch allocates a d x w counter matrix.
func NewCMSketch(d, w int) *CMSketch {
	counters := make([][]uint32, d)
	for i := range counters {
		counters[i] = make([]uint32, w)
	}
	hs := make([]jhash.BOBHash32, d)
	for i := range hs {
		hs[i] = jhash.NewBOBHash32()
	}
	return &CMSketch{counters: counters, hs: hs, w: w, d: d}
}

// Update adds c to one counter per row.
func (s *CMSketch) Update(key flowkey.FlowKey, c uint32) {
	for i := 0; i < s.d; i++ {
		idx := s.hs[i].HashKey(key) % uint32(s.w)
		s.counters[i][idx] += c
	}
}

// Query returns the minimum counter across all rows for key.
func (s *CMSketch) Query(key flowkey.FlowKey) uint32 {
	minVal := uint32(0xFFFFFFFF)
	for i := 0; i < s.d; i++ {
		idx := s.hs[i].HashKey(key) % uint32(s.w)
		if s.counters[i][idx] < minVal {
			minVal = s.counters[i][idx]
		}
	}
	return minVal
}

// Clear zeroes every counter.
func (s *CMSketch) Clear() {
	for i := range s.counters {
		for j := range s.counters[i] {
			s.counters[i][j] = 0
		}
	}
}

// SizeBytes returns the backing storage size.
func (s *CMSketch) SizeBytes() int {
	return s.d * s.w * 4
}

// Width returns w.
func (s *CMSketch) Width() int { return s.w }

// Depth returns d.
func (s *CMSketch) Depth() int { return s.d }
