package detector

import "github.com/jitterbench/jitterbench/internal/flowkey"

// lastIFPDTable is the direct-mapped, fixed-size (FlowKey, IFPD) table
// shared by every approximate detector's gating stage (spec.md §4.7,
// design note "Direct-mapped last-IFPD table").
//
// It is intentionally lossy: a slot is indexed by BOBHash32(key) mod N,
// and a collision between two different flows silently overwrites the
// slot with no chaining, no probing, and no error. Do not back this with
// a map -- the collision silence is the contract.
type lastIFPDTable struct {
	keys   []flowkey.FlowKey
	valid  []bool
	values []uint64
}

func newLastIFPDTable(n int) *lastIFPDTable {
	return &lastIFPDTable{
		keys:   make([]flowkey.FlowKey, n),
		valid:  make([]bool, n),
		values: make([]uint64, n),
	}
}

// lookupAndStore indexes by idx, returns the previous (value, ok) pair
// iff the stored slot's key equals key, then stores newValue
// unconditionally at idx under key.
//
// ok is false both when the slot was never populated and when it holds a
// different flow's entry (collision) -- in both cases the caller treats
// the previous IFPD as unknown and skips the jitter test for this packet.
func (t *lastIFPDTable) lookupAndStore(idx int, key flowkey.FlowKey, newValue uint64) (old uint64, ok bool) {
	if t.valid[idx] && t.keys[idx].Equal(key) {
		old, ok = t.values[idx], true
	}
	t.keys[idx] = key
	t.valid[idx] = true
	t.values[idx] = newValue
	return old, ok
}

func (t *lastIFPDTable) clear() {
	for i := range t.valid {
		t.keys[i] = flowkey.FlowKey{}
		t.valid[i] = false
		t.values[i] = 0
	}
}

func (t *lastIFPDTable) sizeBytes() int {
	return len(t.keys) * (flowkey.Size + 1 + 8)
}

// len returns the table's fixed slot count N, used to compute
// BOBHash32(key) mod N at call sites.
func (t *lastIFPDTable) len() int {
	return len(t.keys)
}
