// Package sketch implements the fixed-memory probabilistic primitives the
// detectors are built from: BloomFilter, the bit-striped BitBf counter,
// and CMSketch (Count-Min). Every structure here allocates its backing
// array once at construction and never resizes it, matching the
// no-reallocation invariant of spec.md §5.
package sketch

import (
	"errors"

	"github.com/jitterbench/jitterbench/internal/flowkey"
	"github.com/jitterbench/jitterbench/internal/jhash"
)

// ErrDimensionMismatch is returned by BloomFilter.And/Or when the two
// operands have different bit-array lengths or hash families. This is a
// programming-error domain per spec.md §7.3: production call sites never
// trigger it on a correct configuration.
var ErrDimensionMismatch = errors.New("sketch: dimension mismatch")

// BloomFilter is a fixed bit array of NBits (rounded up to the next prime)
// with K independent AwareHash instances.
type BloomFilter struct {
	bits  []uint64 // packed bit array, 64 bits per word
	nbits int
	k     int
	hs    []jhash.AwareHash
}

// NewBloomFilter allocates a BloomFilter sized to at least nbits bits
// (rounded up to the next prime, to spread hash collisions evenly across
// the table) with k independent hashes.
func NewBloomFilter(nbits, k int) *BloomFilter {
	n := nextPrime(nbits)
	words := (n + 63) / 64

	hs := make([]jhash.AwareHash, k)
	for i := range hs {
		hs[i] = jhash.NewAwareHash()
	}

	return &BloomFilter{
		bits:  make([]uint64, words),
		nbits: n,
		k:     k,
		hs:    hs,
	}
}

func (f *BloomFilter) bitIndices(key flowkey.FlowKey) []int {
	idx := make([]int, f.k)
	for i, h := range f.hs {
		idx[i] = int(h.HashKey(key) % uint64(f.nbits))
	}
	return idx
}

func (f *BloomFilter) setBit(i int) {
	f.bits[i/64] |= 1 << uint(i%64)
}

func (f *BloomFilter) clearBit(i int) {
	f.bits[i/64] &^= 1 << uint(i%64)
}

func (f *BloomFilter) testBit(i int) bool {
	return f.bits[i/64]&(1<<uint(i%64)) != 0
}

// Insert sets the k bits associated with key.
func (f *BloomFilter) Insert(key flowkey.FlowKey) {
	for _, i := range f.bitIndices(key) {
		f.setBit(i)
	}
}

// Query reports whether all k bits associated with key are set.
func (f *BloomFilter) Query(key flowkey.FlowKey) bool {
	for _, i := range f.bitIndices(key) {
		if !f.testBit(i) {
			return false
		}
	}
	return true
}

// Reset clears the k bits associated with key.
//
// The caller must guarantee no other live member shares those bits;
// BloomFilter performs no reference counting.
func (f *BloomFilter) Reset(key flowkey.FlowKey) {
	for _, i := range f.bitIndices(key) {
		f.clearBit(i)
	}
}

// Clear zeroes the entire bit array.
func (f *BloomFilter) Clear() {
	for i := range f.bits {
		f.bits[i] = 0
	}
}

// NBits returns the (prime-rounded) bit-array length.
func (f *BloomFilter) NBits() int { return f.nbits }

// K returns the number of hash functions.
func (f *BloomFilter) K() int { return f.k }

// SizeBytes returns the backing storage size, for mem_size accounting.
func (f *BloomFilter) SizeBytes() int { return len(f.bits) * 8 }

func (f *BloomFilter) sameDimensions(other *BloomFilter) bool {
	if f.nbits != other.nbits || f.k != other.k {
		return false
	}
	for i := range f.hs {
		if !f.hs[i].Equal(other.hs[i]) {
			return false
		}
	}
	return true
}

// And performs a pointwise AND with other, requiring identical dimensions
// and hash family.
func (f *BloomFilter) And(other *BloomFilter) error {
	if !f.sameDimensions(other) {
		return ErrDimensionMismatch
	}
	for i := range f.bits {
		f.bits[i] &= other.bits[i]
	}
	return nil
}

// Or performs a pointwise OR with other, requiring identical dimensions
// and hash family.
func (f *BloomFilter) Or(other *BloomFilter) error {
	if !f.sameDimensions(other) {
		return ErrDimensionMismatch
	}
	for i := range f.bits {
		f.bits[i] |= other.bits[i]
	}
	return nil
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}

func nextPrime(n int) int {
	if n < 2 {
		n = 2
	}
	for !isPrime(n) {
		n++
	}
	return n
}
