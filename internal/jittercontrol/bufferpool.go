// Package jittercontrol implements the buffered jitter-control experiment
// of spec.md §4.9: a fixed-capacity slab of per-flow timestamp buffers fed
// by an Optimizer, with admission gated by jitter-aware optimizers.
package jittercontrol

import "github.com/jitterbench/jitterbench/internal/flowkey"

// bufferSlot holds one flow's buffered arrival timestamps while the slot
// is active. Timestamps is reused across slot lifetimes to avoid
// reallocating per admission.
type bufferSlot struct {
	key         flowkey.FlowKey
	lastArrival uint64
	timestamps  []uint64
	active      bool
}

// bufferPool is a fixed-capacity array of slots with free-list
// reclamation, grounded on the same fixed-array-plus-freelist shape as
// pkg/slotcache's bucket storage, generalized here from a byte-addressed
// slab to a slice of typed slots.
type bufferPool struct {
	slots    []bufferSlot
	index    map[flowkey.FlowKey]int
	freeList []int
}

// newBufferPool allocates a pool of the given fixed capacity. Capacity
// never changes after construction.
func newBufferPool(capacity int) *bufferPool {
	p := &bufferPool{
		slots:    make([]bufferSlot, capacity),
		index:    make(map[flowkey.FlowKey]int, capacity),
		freeList: make([]int, capacity),
	}
	for i := range p.freeList {
		p.freeList[i] = capacity - 1 - i
	}
	return p
}

// lookup returns the slot index for key and whether it is currently
// active.
func (p *bufferPool) lookup(key flowkey.FlowKey) (int, bool) {
	idx, ok := p.index[key]
	return idx, ok
}

// admit takes the first free slot for key, if any is available. Returns
// false if the pool is full; the record is then dropped by the caller.
func (p *bufferPool) admit(key flowkey.FlowKey, ts uint64) bool {
	if len(p.freeList) == 0 {
		return false
	}
	n := len(p.freeList)
	idx := p.freeList[n-1]
	p.freeList = p.freeList[:n-1]

	s := &p.slots[idx]
	s.key = key
	s.lastArrival = ts
	s.timestamps = append(s.timestamps[:0], ts)
	s.active = true
	p.index[key] = idx
	return true
}

// append adds ts to the slot already admitted for key and refreshes
// lastArrival.
func (p *bufferPool) append(idx int, ts uint64) {
	s := &p.slots[idx]
	s.timestamps = append(s.timestamps, ts)
	s.lastArrival = ts
}

// free releases the slot back to the pool and empties its buffered
// timestamps. The caller has already consumed them before calling free.
func (p *bufferPool) free(idx int) {
	delete(p.index, p.slots[idx].key)
	p.slots[idx].active = false
	p.slots[idx].timestamps = p.slots[idx].timestamps[:0]
	p.freeList = append(p.freeList, idx)
}

// activeIndices returns the indices of every currently active slot, in
// slot order. Used for timeout scanning and end-of-stream flush.
func (p *bufferPool) activeIndices() []int {
	out := make([]int, 0, len(p.slots)-len(p.freeList))
	for i := range p.slots {
		if p.slots[i].active {
			out = append(out, i)
		}
	}
	return out
}
