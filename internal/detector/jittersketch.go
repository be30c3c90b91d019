package detector

import (
	"github.com/jitterbench/jitterbench/internal/flowkey"
	"github.com/jitterbench/jitterbench/internal/jhash"
)

// s2Vacant is the "no arrival yet" sentinel for S2.lastArrivalTime.
// Observed real timestamps are microseconds-since-epoch-scaled-to-u64,
// typically >= 10^12, so 0xFF can never collide with a live arrival time.
// Preserved verbatim from spec.md's design notes.
const s2Vacant = 0xFF

type s1Cell struct {
	fp   uint16
	freq uint32
}

type s2Cell struct {
	smallIFPD   uint64 // capped IFPD; see jitterSketchCore.maxSmall
	longFP      uint32
	lastArrival uint64
}

func vacantS2Cell() s2Cell {
	return s2Cell{smallIFPD: 0, longFP: 0, lastArrival: s2Vacant}
}

type s3Entry struct {
	valid       bool
	key         flowkey.FlowKey
	lastArrival uint64
	ifpd        uint64
}

// jitterSketchCore implements the three-stage filtered detector of
// spec.md §4.7.3. JitterSketch and JitterSketchS1Opt are both thin
// wrappers configuring this core: JitterSketch uses a single derived
// BOBHash32 per packet (one call, split via division/rotation) and a
// wide (32-bit range) SMALL cap; JitterSketchS1Opt uses three independent
// BOBHash32 instances and s1HashNum parallel S1 candidates, with a
// narrow (16-bit range) SMALL cap.
type jitterSketchCore struct {
	cfg Config

	w1, w2, w3, d3 int
	s1HashNum      int
	maxSmall       uint64
	optimized      bool

	s1 []s1Cell
	s2 []s2Cell
	s3 [][]s3Entry // d3 rows x w3 columns

	// Plain-mode hashing.
	h jhash.BOBHash32
	// Optimized-mode hashing: one independent hash per stage, plus
	// s1HashNum-1 extra probes for S1 candidates.
	h1, h2, h3 jhash.BOBHash32
	s1Extra    []jhash.BOBHash32

	events []AbnormalEvent
}

func newJitterSketchCore(cfg Config, w1, w2, w3, d3, s1HashNum int, maxSmall uint64, optimized bool) *jitterSketchCore {
	c := &jitterSketchCore{
		cfg:       cfg,
		w1:        w1,
		w2:        w2,
		w3:        w3,
		d3:        d3,
		s1HashNum: s1HashNum,
		maxSmall:  maxSmall,
		optimized: optimized,
	}
	c.allocate()
	return c
}

// allocate constructs the hash instances and stage storage. Called once,
// from newJitterSketchCore: the hash identities (and the global salt
// counters jhash.NewBOBHash32 advances) must never be drawn again after
// construction, or clear() would remap every key to different indices.
func (c *jitterSketchCore) allocate() {
	if c.optimized {
		c.h1 = jhash.NewBOBHash32()
		c.h2 = jhash.NewBOBHash32()
		c.h3 = jhash.NewBOBHash32()
		n := c.s1HashNum
		if n < 1 {
			n = 1
		}
		c.s1Extra = make([]jhash.BOBHash32, n-1)
		for i := range c.s1Extra {
			c.s1Extra[i] = jhash.NewBOBHash32()
		}
	} else {
		c.h = jhash.NewBOBHash32()
	}

	c.resetStages()
}

// resetStages (re)allocates the stage arrays and drops pending events
// without touching hash identity, so it is also what clear() uses.
func (c *jitterSketchCore) resetStages() {
	c.s1 = make([]s1Cell, c.w1)
	c.s2 = make([]s2Cell, c.w2)
	for i := range c.s2 {
		c.s2[i] = vacantS2Cell()
	}
	c.s3 = make([][]s3Entry, c.d3)
	for i := range c.s3 {
		c.s3[i] = make([]s3Entry, c.w3)
	}
	c.events = nil
}

func rot16(h uint32) uint32 {
	return (h << 16) | (h >> 16)
}

// indices computes every stage's candidate indices/fingerprints for key.
func (c *jitterSketchCore) indices(key flowkey.FlowKey) (s1Idx []int, fp uint16, s2Idx int, longFP uint32, s3Idx int) {
	if !c.optimized {
		h := c.h.HashKey(key)
		s1i := int(h % uint32(c.w1))
		fp = uint16((h / uint32(c.w1)) & 0xFFFF)
		h2 := rot16(h)
		s2Idx = int(h2 % uint32(c.w2))
		longFP = h2 / uint32(c.w2)
		s3Idx = int((h ^ h2) % uint32(c.w3))
		return []int{s1i}, fp, s2Idx, longFP, s3Idx
	}

	h1 := c.h1.HashKey(key)
	s1i := []int{int(h1 % uint32(c.w1))}
	for _, extra := range c.s1Extra {
		s1i = append(s1i, int(extra.HashKey(key)%uint32(c.w1)))
	}
	fp = uint16(h1 & 0xFFFF)

	h2 := c.h2.HashKey(key)
	s2Idx = int(h2 % uint32(c.w2))
	longFP = h2 / uint32(c.w2)

	h3 := c.h3.HashKey(key)
	s3Idx = int(h3 % uint32(c.w3))

	return s1i, fp, s2Idx, longFP, s3Idx
}

// update implements spec.md §4.7.3's three-stage lookup/promotion chain.
func (c *jitterSketchCore) update(key flowkey.FlowKey, ts uint64) uint64 {
	s1Idx, fp, s2Idx, longFP, s3Idx := c.indices(key)

	if delay, ok := c.tryS3(key, s3Idx, ts); ok {
		return delay
	}

	if delay, ok := c.tryS2(key, s2Idx, s3Idx, longFP, ts); ok {
		return delay
	}

	c.updateS1(key, s1Idx, fp, s2Idx, longFP, ts)
	return 0
}

// tryS3 scans the d3 candidate cells at column s3Idx for an exact match.
// S3 is always authoritative: no gating is applied before reporting.
func (c *jitterSketchCore) tryS3(key flowkey.FlowKey, s3Idx int, ts uint64) (uint64, bool) {
	for row := 0; row < c.d3; row++ {
		e := &c.s3[row][s3Idx]
		if !e.valid || !e.key.Equal(key) {
			continue
		}

		delay := ts - e.lastArrival
		if jitterRule(c.cfg, e.ifpd, delay) {
			c.events = append(c.events, AbnormalEvent{Key: key, OldIFPD: e.ifpd, NewIFPD: delay, TimestampUs: ts})
		}
		e.ifpd = delay
		e.lastArrival = ts
		return delay, true
	}
	return 0, false
}

// tryS2 checks the S2 bucket at s2Idx for a matching longFP; on a match it
// may promote the entry to S3 when the delay overflows SMALL's range or
// an event fires.
func (c *jitterSketchCore) tryS2(key flowkey.FlowKey, s2Idx, s3Idx int, longFP uint32, ts uint64) (uint64, bool) {
	cell := &c.s2[s2Idx]
	if cell.lastArrival == s2Vacant || cell.longFP != longFP {
		return 0, false
	}

	delay := ts - cell.lastArrival

	old := cell.smallIFPD
	if old == c.maxSmall {
		old = 0 // "unknown" seed value: treat as no prior observation
	}

	reported := old != 0 && jitterRule(c.cfg, old, delay)
	if reported {
		c.events = append(c.events, AbnormalEvent{Key: key, OldIFPD: old, NewIFPD: delay, TimestampUs: ts})
	}

	if delay >= c.maxSmall || reported {
		c.promoteToS3(key, s3Idx, ts, ts, delay)
		*cell = vacantS2Cell()
	} else {
		cell.smallIFPD = delay
		cell.lastArrival = ts
	}

	return delay, true
}

// promoteToS3 inserts (key, lastArrival, ifpd) into the first empty S3
// cell at column s3Idx, or evicts the candidate with the largest idle
// index (ts - lastArrivalTime)/IFPD, treating IFPD=0 as +infinity. ts is
// the current packet's timestamp, the reference point idleness is
// measured against.
func (c *jitterSketchCore) promoteToS3(key flowkey.FlowKey, s3Idx int, ts, lastArrival, ifpd uint64) {
	for row := 0; row < c.d3; row++ {
		if !c.s3[row][s3Idx].valid {
			c.s3[row][s3Idx] = s3Entry{valid: true, key: key, lastArrival: lastArrival, ifpd: ifpd}
			return
		}
	}

	evictRow := 0
	worstIdle := -1.0
	for row := 0; row < c.d3; row++ {
		e := c.s3[row][s3Idx]
		idle := idleIndex(e, ts)
		if idle > worstIdle {
			worstIdle = idle
			evictRow = row
		}
	}
	c.s3[evictRow][s3Idx] = s3Entry{valid: true, key: key, lastArrival: lastArrival, ifpd: ifpd}
}

func idleIndex(e s3Entry, ts uint64) float64 {
	if e.ifpd == 0 {
		return 1e18 // +infinity stand-in: IFPD=0 always looks maximally idle
	}
	return float64(ts-e.lastArrival) / float64(e.ifpd)
}

// updateS1 implements space-saving admission with the
// frequency_threshold-2 promotion bound preserved verbatim (see
// spec.md's design note on the off-by-two).
func (c *jitterSketchCore) updateS1(key flowkey.FlowKey, s1Idx []int, fp uint16, s2Idx int, longFP uint32, ts uint64) {
	for _, idx := range s1Idx {
		if c.s1[idx].fp == fp && c.s1[idx].freq > 0 {
			c.s1[idx].freq++
			if uint64(c.s1[idx].freq) > c.cfg.FrequencyThreshold-2 {
				c.promoteToS2(s2Idx, longFP, ts)
				c.s1[idx] = s1Cell{}
			}
			return
		}
	}

	for _, idx := range s1Idx {
		if c.s1[idx].freq == 0 {
			c.s1[idx] = s1Cell{fp: fp, freq: 1}
			return
		}
	}

	minIdx := s1Idx[0]
	for _, idx := range s1Idx[1:] {
		if c.s1[idx].freq < c.s1[minIdx].freq {
			minIdx = idx
		}
	}
	c.s1[minIdx].freq--
	if c.s1[minIdx].freq == 0 {
		c.s1[minIdx] = s1Cell{}
	}
}

func (c *jitterSketchCore) promoteToS2(s2Idx int, longFP uint32, ts uint64) {
	c.s2[s2Idx] = s2Cell{smallIFPD: c.maxSmall, longFP: longFP, lastArrival: ts}
}

func (c *jitterSketchCore) clear() {
	c.resetStages()
}

func (c *jitterSketchCore) sizeBytes() int {
	s1Bytes := len(c.s1) * 6
	s2Bytes := len(c.s2) * (8 + 4 + 8)
	s3Bytes := c.d3 * c.w3 * (flowkey.Size + 8 + 8 + 1)
	return s1Bytes + s2Bytes + s3Bytes
}
