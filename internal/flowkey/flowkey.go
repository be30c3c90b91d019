// Package flowkey implements the 13-byte 5-tuple flow identifier used
// throughout the detector and optimizer packages.
//
// A FlowKey packs (srcIP, dstIP, srcPort, dstPort, protocol) into a fixed
// byte array so it can be used as a map key, sorted, and hashed without
// allocation.
package flowkey

import (
	"encoding/binary"
	"fmt"
)

// Size is the on-the-wire and in-memory length of a FlowKey in bytes.
const Size = 13

// Field byte offsets within the packed representation.
const (
	offSrcIP   = 0
	offDstIP   = 4
	offSrcPort = 8
	offDstPort = 10
	offProto   = 12
)

// FlowKey is a fixed 13-byte 5-tuple: (u32 srcIP, u32 dstIP, u16 srcPort,
// u16 dstPort, u8 protocol), little-endian.
//
// FlowKey is comparable and safe to use as a map key, but the hot paths in
// internal/sketch and internal/detector avoid map[FlowKey]... in favor of
// direct-mapped arrays (only the oracle, internal/detector.GroundTruthDetector,
// keeps per-flow maps); those arrays use Equal to confirm a slot's owner.
type FlowKey [Size]byte

// OutOfRangeError reports an out-of-bounds partial copy.
//
// It mirrors the teacher's typed-error-with-diagnostic-fields shape
// (internal/store's wrapped sentinel errors) because the three fields are
// part of the contract spec.md §7 asks for, not just a message string.
type OutOfRangeError struct {
	Offset int
	Length int
	Total  int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("flowkey: copy out of range: offset=%d length=%d total=%d", e.Offset, e.Length, e.Total)
}

// New builds a FlowKey from its five fields.
func New(srcIP, dstIP uint32, srcPort, dstPort uint16, protocol uint8) FlowKey {
	var k FlowKey
	binary.LittleEndian.PutUint32(k[offSrcIP:], srcIP)
	binary.LittleEndian.PutUint32(k[offDstIP:], dstIP)
	binary.LittleEndian.PutUint16(k[offSrcPort:], srcPort)
	binary.LittleEndian.PutUint16(k[offDstPort:], dstPort)
	k[offProto] = protocol
	return k
}

// FromBytes interprets the first Size bytes of b as a FlowKey.
//
// Panics if len(b) < Size; callers that receive untrusted-length spans
// should use CopyFrom instead, which returns an error.
func FromBytes(b []byte) FlowKey {
	var k FlowKey
	copy(k[:], b[:Size])
	return k
}

// Bytes returns a read-only view of the raw 13-byte representation.
func (k *FlowKey) Bytes() []byte {
	return k[:]
}

// SrcIP returns the packed source IP field.
func (k FlowKey) SrcIP() uint32 { return binary.LittleEndian.Uint32(k[offSrcIP:]) }

// DstIP returns the packed destination IP field.
func (k FlowKey) DstIP() uint32 { return binary.LittleEndian.Uint32(k[offDstIP:]) }

// SrcPort returns the packed source port field.
func (k FlowKey) SrcPort() uint16 { return binary.LittleEndian.Uint16(k[offSrcPort:]) }

// DstPort returns the packed destination port field.
func (k FlowKey) DstPort() uint16 { return binary.LittleEndian.Uint16(k[offDstPort:]) }

// Protocol returns the packed protocol field.
func (k FlowKey) Protocol() uint8 { return k[offProto] }

// CopyFrom copies length bytes from src[srcPos:srcPos+length] into
// dst[dstPos:dstPos+length], where dst and src are raw FlowKey byte spans.
//
// Returns *OutOfRangeError if the requested span does not fit within
// either buffer; the copy is atomic (all-or-nothing).
func CopyFrom(dst []byte, dstPos int, src []byte, srcPos int, length int) error {
	if dstPos < 0 || length < 0 || dstPos+length > len(dst) {
		return &OutOfRangeError{Offset: dstPos, Length: length, Total: len(dst)}
	}
	if srcPos < 0 || srcPos+length > len(src) {
		return &OutOfRangeError{Offset: srcPos, Length: length, Total: len(src)}
	}
	copy(dst[dstPos:dstPos+length], src[srcPos:srcPos+length])
	return nil
}

// Less reports whether k orders strictly before other under lexicographic
// byte-order comparison.
func (k FlowKey) Less(other FlowKey) bool {
	return compare(k, other) < 0
}

// Equal reports byte-for-byte equality. Defined explicitly (rather than
// relying on == alone everywhere) so call sites read intention, matching
// the teacher's preference for named comparison helpers over bare ==.
func (k FlowKey) Equal(other FlowKey) bool {
	return k == other
}

// Compare returns -1, 0, or +1 following lexicographic byte order,
// matching sort.Interface / slices.SortFunc conventions.
func Compare(a, b FlowKey) int {
	return compare(a, b)
}

func compare(a, b FlowKey) int {
	for i := 0; i < Size; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String renders a human-readable hex dump, useful in test failure output.
func (k FlowKey) String() string {
	return fmt.Sprintf("%08x:%04x->%08x:%04x/%d", k.SrcIP(), k.SrcPort(), k.DstIP(), k.DstPort(), k.Protocol())
}
