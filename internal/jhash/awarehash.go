// Package jhash implements the two hash families the sketches are built
// on: AwareHash, a seeded 64-bit multiply-add rolling hash, and BOBHash32,
// Bob Jenkins' lookup3 adaptation. Both are deterministic across process
// runs: AwareHash draws its seed triple from a counter-indexed generator,
// and BOBHash32 draws its salt from a fixed prime table, so that the n-th
// default-constructed instance of either hash is bit-identical run to run.
package jhash

import (
	"github.com/jitterbench/jitterbench/internal/flowkey"
)

// seedCounterWrap: the seed counter wraps at 18, three seed words (init, scale, hardener) times
// six logical hash slots per detector. Preserved verbatim per the
// specification -- changing this value changes the bit pattern of every
// sketch built from a default-constructed AwareHash.
const seedCounterWrap = 18

var globalSeedCounter uint64

// mangle is the fixed generator AwareHash seeds are drawn through. It is
// itself an AwareHash-shaped mix so that seed derivation needs no
// additional hash primitive.
func mangle(x uint64) uint64 {
	h := uint64(0xe17a1465)
	h = h*1099511628211 + uint64(byte(x))
	h = h*1099511628211 + uint64(byte(x>>8))
	h = h*1099511628211 + uint64(byte(x>>16))
	h = h*1099511628211 + uint64(byte(x>>24))
	h = h*1099511628211 + uint64(byte(x>>32))
	h = h*1099511628211 + uint64(byte(x>>40))
	h = h*1099511628211 + uint64(byte(x>>48))
	h = h*1099511628211 + uint64(byte(x>>56))
	return h ^ 0x9E3779B97F4A7C15
}

// AwareHash is a 64-bit rolling multiply-add hash:
// h := init; for each byte b: h = h*scale + b; return h XOR hardener.
type AwareHash struct {
	init     uint64
	scale    uint64
	hardener uint64
}

// NewAwareHash draws the next (init, scale, hardener) triple from the
// deterministic counter-seeded generator and returns a ready-to-use hash.
//
// The k-th call to NewAwareHash in a process (in call order) always
// produces the same triple, because the underlying counter wraps at
// seedCounterWrap and is hashed through the fixed mangle generator.
func NewAwareHash() AwareHash {
	c := globalSeedCounter
	globalSeedCounter = (globalSeedCounter + 1) % seedCounterWrap

	return AwareHash{
		init:     mangle(c*3 + 0),
		scale:    mangle(c*3+1) | 1, // odd scale keeps the multiply a bijection mod 2^64
		hardener: mangle(c*3 + 2),
	}
}

// ResetGlobalSeedCounter rewinds the process-wide AwareHash seed counter to
// zero. Exposed for tests that need a fresh, reproducible sequence of
// default-constructed hashes without depending on package init order.
func ResetGlobalSeedCounter() {
	globalSeedCounter = 0
}

// Hash computes the rolling hash over an arbitrary byte span.
func (a AwareHash) Hash(b []byte) uint64 {
	h := a.init
	for _, c := range b {
		h = h*a.scale + uint64(c)
	}
	return h ^ a.hardener
}

// HashKey is a convenience wrapper for flowkey.FlowKey.
func (a AwareHash) HashKey(k flowkey.FlowKey) uint64 {
	return a.Hash(k.Bytes())
}

// Equal compares the seed triple, used only in defensive assertions when
// combining two BloomFilter instances (internal/sketch.BloomFilter.And/Or).
func (a AwareHash) Equal(other AwareHash) bool {
	return a.init == other.init && a.scale == other.scale && a.hardener == other.hardener
}
