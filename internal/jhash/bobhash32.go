package jhash

import (
	"github.com/jitterbench/jitterbench/internal/flowkey"
)

// primeTableSize is the number of salts BOBHash32 round-robins through.
const primeTableSize = 1229

// primeTable holds the first primeTableSize prime numbers, computed once
// at package init via a sieve. Using a generated table (rather than a
// 1229-entry literal) keeps the seed derivation auditable while still
// giving every instance a distinct, deterministic salt.
var primeTable = sieveFirstNPrimes(primeTableSize)

func sieveFirstNPrimes(n int) []uint32 {
	primes := make([]uint32, 0, n)
	candidate := uint32(2)
	for len(primes) < n {
		isPrime := true
		for _, p := range primes {
			if uint64(p)*uint64(p) > uint64(candidate) {
				break
			}
			if candidate%p == 0 {
				isPrime = false
				break
			}
		}
		if isPrime {
			primes = append(primes, candidate)
		}
		candidate++
	}
	return primes
}

var bobSaltCounter int

// BOBHash32 is Bob Jenkins' lookup3 hash, salted from a round-robin walk
// through a fixed prime table so default-constructed instances are
// deterministic across runs, same as AwareHash.
type BOBHash32 struct {
	salt uint32
}

// NewBOBHash32 selects the next salt in construction order, wrapping
// deterministically through primeTable.
func NewBOBHash32() BOBHash32 {
	salt := primeTable[bobSaltCounter%primeTableSize]
	bobSaltCounter++
	return BOBHash32{salt: salt}
}

// ResetGlobalSaltCounter rewinds the process-wide BOBHash32 salt counter.
// Exposed for tests needing a reproducible sequence independent of
// previously constructed hashes.
func ResetGlobalSaltCounter() {
	bobSaltCounter = 0
}

// Hash computes the 32-bit lookup3 hash of b, seeded with the instance's
// salt.
func (h BOBHash32) Hash(b []byte) uint32 {
	return lookup3(b, h.salt)
}

// HashKey is a convenience wrapper for flowkey.FlowKey.
func (h BOBHash32) HashKey(k flowkey.FlowKey) uint32 {
	return h.Hash(k.Bytes())
}

func rot(x uint32, k uint) uint32 {
	return (x << k) | (x >> (32 - k))
}

func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= c
	a ^= rot(c, 4)
	c += b
	b -= a
	b ^= rot(a, 6)
	a += c
	c -= b
	c ^= rot(b, 8)
	b += a
	a -= c
	a ^= rot(c, 16)
	c += b
	b -= a
	b ^= rot(a, 19)
	a += c
	c -= b
	c ^= rot(b, 4)
	b += a
	return a, b, c
}

func final(a, b, c uint32) (uint32, uint32, uint32) {
	c ^= b
	c -= rot(b, 14)
	a ^= c
	a -= rot(c, 11)
	b ^= a
	b -= rot(a, 25)
	c ^= b
	c -= rot(b, 16)
	a ^= c
	a -= rot(c, 4)
	b ^= a
	b -= rot(a, 14)
	c ^= b
	c -= rot(b, 24)
	return a, b, c
}

// lookup3 is Bob Jenkins' hashlittle() specialised to a byte slice input,
// matching the reference public-domain implementation's mixing schedule.
func lookup3(data []byte, seed uint32) uint32 {
	length := len(data)
	a, b, c := uint32(0xdeadbeef)+uint32(length)+seed, uint32(0xdeadbeef)+uint32(length)+seed, uint32(0xdeadbeef)+uint32(length)+seed

	for length > 12 {
		a += uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
		b += uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24
		c += uint32(data[8]) | uint32(data[9])<<8 | uint32(data[10])<<16 | uint32(data[11])<<24
		a, b, c = mix(a, b, c)
		data = data[12:]
		length -= 12
	}

	switch length {
	case 12:
		c += uint32(data[11]) << 24
		fallthrough
	case 11:
		c += uint32(data[10]) << 16
		fallthrough
	case 10:
		c += uint32(data[9]) << 8
		fallthrough
	case 9:
		c += uint32(data[8])
		fallthrough
	case 8:
		b += uint32(data[7]) << 24
		fallthrough
	case 7:
		b += uint32(data[6]) << 16
		fallthrough
	case 6:
		b += uint32(data[5]) << 8
		fallthrough
	case 5:
		b += uint32(data[4])
		fallthrough
	case 4:
		a += uint32(data[3]) << 24
		fallthrough
	case 3:
		a += uint32(data[2]) << 16
		fallthrough
	case 2:
		a += uint32(data[1]) << 8
		fallthrough
	case 1:
		a += uint32(data[0])
	case 0:
		return c
	}

	_, _, c = final(a, b, c)
	return c
}
