package detector

import (
	"github.com/jitterbench/jitterbench/internal/flowkey"
	"github.com/jitterbench/jitterbench/internal/jhash"
	"github.com/jitterbench/jitterbench/internal/sketch"
)

// delayBucket is one {fp:u16, t:u64} cell of the DelaySketch table.
type delayBucket struct {
	fp uint16
	t  uint64
}

// DelaySketchParams configures a DelaySketch's d x w fingerprint-timestamp
// table and its CM + last-IFPD gate.
type DelaySketchParams struct {
	D int
	W int

	CMDepth int
	CMWidth int

	IFPDTableSize int
}

// DelaySketch is the fingerprint-timestamp table detector of
// spec.md §4.7.2.
type DelaySketch struct {
	cfg    Config
	params DelaySketchParams

	table [][]delayBucket
	rowH  []jhash.BOBHash32
	fpH   jhash.BOBHash32

	cm    *sketch.CMSketch
	ifpd  *lastIFPDTable
	ifpdH jhash.BOBHash32

	initTime uint64
	events   []AbnormalEvent
}

// NewDelaySketch allocates a DelaySketch with the given parameters.
func NewDelaySketch(cfg Config, p DelaySketchParams) *DelaySketch {
	d := &DelaySketch{cfg: cfg, params: p}
	d.allocate()
	return d
}

// allocate constructs the table and every hash instance. Called once,
// from NewDelaySketch: jhash.NewBOBHash32 draws from a global salt
// counter, so calling allocate again from Clear would leave the cleared
// sketch hashing keys to different rows/columns than it started with.
func (d *DelaySketch) allocate() {
	d.table = make([][]delayBucket, d.params.D)
	d.rowH = make([]jhash.BOBHash32, d.params.D)
	for i := 0; i < d.params.D; i++ {
		d.table[i] = make([]delayBucket, d.params.W)
		d.rowH[i] = jhash.NewBOBHash32()
	}
	d.fpH = jhash.NewBOBHash32()
	d.cm = sketch.NewCMSketch(d.params.CMDepth, d.params.CMWidth)
	d.ifpd = newLastIFPDTable(d.params.IFPDTableSize)
	d.ifpdH = jhash.NewBOBHash32()
	d.resetState()
}

// resetState zeroes the table and every component's backing storage in
// place, without reconstructing any hash instance, so it is also what
// Clear() uses.
func (d *DelaySketch) resetState() {
	for i := range d.table {
		row := d.table[i]
		for j := range row {
			row[j] = delayBucket{}
		}
	}
	d.cm.Clear()
	d.ifpd.clear()
	d.events = nil
}

// SetInitTime records the run's starting timestamp.
func (d *DelaySketch) SetInitTime(ts uint64) {
	d.initTime = ts
}

// Update implements spec.md §4.7.2.
func (d *DelaySketch) Update(key flowkey.FlowKey, ts uint64) uint64 {
	fp := uint16(d.fpH.HashKey(key) & 0xFFFF)

	var delay uint64
	found := false
	emptyIdx := -1
	row := -1

	for i := 0; i < d.params.D; i++ {
		idx := int(d.rowH[i].HashKey(key) % uint32(d.params.W))
		b := &d.table[i][idx]

		if b.fp == fp && b.t != 0 {
			delay = ts - b.t
			b.t = ts
			found = true
			row = i
			break
		}
		if b.fp == 0 && b.t == 0 && emptyIdx == -1 {
			emptyIdx = idx
			row = i
		}
	}

	switch {
	case found:
		// delay already computed; row's entry already refreshed above.
		_ = row
	case emptyIdx >= 0:
		d.table[row][emptyIdx] = delayBucket{fp: fp, t: ts}
		delay = 0
	default:
		// Evict the candidate with the largest timestamp across all d
		// candidate cells (freshest arrival), preserving older entries a
		// chance to be read later.
		evictRow, evictIdx := d.findEvictionCandidate(key)
		evicted := d.table[evictRow][evictIdx]
		delay = ts - evicted.t
		d.table[evictRow][evictIdx] = delayBucket{fp: fp, t: ts}
	}

	d.gate(key, delay, ts)

	return delay
}

func (d *DelaySketch) findEvictionCandidate(key flowkey.FlowKey) (row, idx int) {
	bestRow, bestIdx := 0, 0
	var bestT uint64
	for i := 0; i < d.params.D; i++ {
		idx := int(d.rowH[i].HashKey(key) % uint32(d.params.W))
		if d.table[i][idx].t >= bestT {
			bestT = d.table[i][idx].t
			bestRow, bestIdx = i, idx
		}
	}
	return bestRow, bestIdx
}

func (d *DelaySketch) gate(key flowkey.FlowKey, delay uint64, ts uint64) {
	d.cm.Update(key, 1)
	idx := int(d.ifpdH.HashKey(key) % uint32(d.ifpd.len()))

	if d.cm.Query(key) < uint32(d.cfg.FrequencyThreshold) {
		d.ifpd.lookupAndStore(idx, key, delay)
		return
	}

	old, ok := d.ifpd.lookupAndStore(idx, key, delay)
	if ok && jitterRule(d.cfg, old, delay) {
		d.events = append(d.events, AbnormalEvent{Key: key, OldIFPD: old, NewIFPD: delay, TimestampUs: ts})
	}
}

// AbnormalEvents returns every event reported so far.
func (d *DelaySketch) AbnormalEvents() []AbnormalEvent { return d.events }

// Size reports the total fixed backing-storage footprint.
func (d *DelaySketch) Size() int {
	return d.params.D*d.params.W*10 + d.cm.SizeBytes() + d.ifpd.sizeBytes()
}

// Clear restores post-construction state.
func (d *DelaySketch) Clear() {
	d.resetState()
}
