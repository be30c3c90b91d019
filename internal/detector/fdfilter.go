package detector

import (
	"github.com/jitterbench/jitterbench/internal/flowkey"
	"github.com/jitterbench/jitterbench/internal/jhash"
	"github.com/jitterbench/jitterbench/internal/sketch"
)

// fdFilterGateThreshold is the hard-coded CM gate threshold from
// spec.md §4.7.1 step 4. Preserved verbatim.
const fdFilterGateThreshold = 30

// FDFilterParams configures an FDFilter's fixed-size backing arrays. The
// effective dimensions are derived by internal/config from the detector's
// mem_size budget and ratio keys; FDFilter itself only allocates what it
// is told to.
type FDFilterParams struct {
	K        int // number of historical BitBf windows, plus one live window
	KK       int // bit-levels per BitBf (encodes sub-window index)
	NBits    int // per-level BloomFilter width
	NumHash  int // hashes per per-level BloomFilter
	GNBits   int // global BloomFilter width
	GNumHash int // global BloomFilter hash count

	CMDepth int
	CMWidth int

	IFPDTableSize int

	// DelayThres is the nominal maximum encodable delay in microseconds.
	// Not itself enumerated among spec.md §6's per-detector keys; treated
	// as an FDFilter-specific extension key defaulted by internal/config
	// (see DESIGN.md).
	DelayThres uint64
}

// FDFilter is the time-windowed BitBf + global BloomFilter + CM detector
// of spec.md §4.7.1.
type FDFilter struct {
	cfg    Config
	params FDFilterParams

	bfs    []*sketch.BitBf // length K+1; bfs[K] is the live window
	gbf    *sketch.BloomFilter
	cm     *sketch.CMSketch
	ifpd   *lastIFPDTable
	ifpdH  jhash.BOBHash32

	subWinNum  uint64
	lastUpdate uint64
	initTime   uint64
	part       uint64
	interval   float64

	events []AbnormalEvent
}

// NewFDFilter allocates an FDFilter with the given parameters.
func NewFDFilter(cfg Config, p FDFilterParams) *FDFilter {
	f := &FDFilter{cfg: cfg, params: p}
	f.part = uint64(p.K) * uint64((1<<uint(p.KK))-1)
	if p.DelayThres == 0 {
		p.DelayThres = 2_000_000
		f.params.DelayThres = p.DelayThres
	}
	f.interval = float64(f.params.DelayThres) / float64(f.part)
	f.allocate()
	return f
}

// allocate constructs every backing sketch and hash instance. Called
// once, from NewFDFilter: each New* call draws from jhash's global salt
// counters, so calling allocate again from Clear would give the cleared
// filter different hash identities than it started with.
func (f *FDFilter) allocate() {
	f.bfs = make([]*sketch.BitBf, f.params.K+1)
	for i := range f.bfs {
		f.bfs[i] = sketch.NewBitBf(f.params.NBits, f.params.NumHash, f.params.KK)
	}
	f.gbf = sketch.NewBloomFilter(f.params.GNBits, f.params.GNumHash)
	f.cm = sketch.NewCMSketch(f.params.CMDepth, f.params.CMWidth)
	f.ifpd = newLastIFPDTable(f.params.IFPDTableSize)
	f.ifpdH = jhash.NewBOBHash32()
	f.resetState()
}

// resetState zeroes every component's backing storage in place, without
// reconstructing any hash instance, so it is also what Clear() uses.
func (f *FDFilter) resetState() {
	// Window aging rotates bfs left by one slot every 2^kk-1 sub-windows;
	// undo those rotations so each slot again holds the BitBf (and hash
	// instances) it was constructed with.
	if n := len(f.bfs); n > 0 {
		maxVal := uint64((1 << uint(f.params.KK)) - 1)
		r := int((f.subWinNum / maxVal) % uint64(n))
		restored := make([]*sketch.BitBf, n)
		for i, b := range f.bfs {
			restored[(i+r)%n] = b
		}
		copy(f.bfs, restored)
	}
	for _, b := range f.bfs {
		b.Clear()
	}
	f.gbf.Clear()
	f.cm.Clear()
	f.ifpd.clear()
	f.events = nil
	f.subWinNum = 0
	f.lastUpdate = 0
}

// SetInitTime records the run's starting timestamp.
func (f *FDFilter) SetInitTime(ts uint64) {
	f.initTime = ts
	f.lastUpdate = ts
}

// Update implements spec.md §4.7.1 steps 1-4.
func (f *FDFilter) Update(key flowkey.FlowKey, ts uint64) uint64 {
	f.advanceWindowIfDue(ts)

	var estiDelay uint64
	if !f.gbf.Query(key) {
		f.gbf.Insert(key)
		f.bfs[f.params.K].Update(key, f.currentSubWindowBit())
		estiDelay = 0
	} else {
		estiDelay = f.reconstructDelay(key, ts)
		f.bfs[f.params.K].Update(key, f.currentSubWindowBit())
	}

	f.gate(key, estiDelay, ts)

	return estiDelay
}

// currentSubWindowBit encodes the current sub-window index within a
// bfs[K] BitBf: sub_win_num mod (2^kk - 1), biased by +1 so that 0 remains
// a distinguishable "never marked" value in BitBf.Query.
func (f *FDFilter) currentSubWindowBit() uint32 {
	maxVal := uint32((1 << uint(f.params.KK)) - 1)
	return uint32(f.subWinNum%uint64(maxVal)) + 1
}

func (f *FDFilter) advanceWindowIfDue(ts uint64) {
	if f.lastUpdate == 0 {
		f.lastUpdate = ts
		return
	}
	if (ts-f.lastUpdate)*f.part < f.params.DelayThres {
		return
	}

	f.subWinNum++
	maxVal := uint64((1 << uint(f.params.KK)) - 1)
	if f.subWinNum%maxVal == 0 {
		for i := 0; i < f.params.K; i++ {
			f.bfs[i], f.bfs[i+1] = f.bfs[i+1], f.bfs[i]
		}
		f.bfs[f.params.K].Clear()
	}
	f.lastUpdate = ts
}

// reconstructDelay implements the closed-form delay reconstruction of
// spec.md §4.7.1 step 3.
func (f *FDFilter) reconstructDelay(key flowkey.FlowKey, ts uint64) uint64 {
	now := f.currentSubWindowBit()
	maxVal := uint32((1 << uint(f.params.KK)) - 1)

	for i := 0; i <= f.params.K; i++ {
		v := f.bfs[f.params.K-i].Query(key)
		if v == 0 {
			continue
		}

		base := ts - f.lastUpdate
		switch {
		case i == 0 && v == now:
			return base
		case i == 0:
			return base + uint64((float64(now)-1)*f.interval)
		default:
			extra := (float64(maxVal-v) + float64(i-1)*float64(maxVal) + float64(now) - 1) * f.interval
			return base + uint64(extra+f.interval/2)
		}
	}

	return ts - f.lastUpdate
}

func (f *FDFilter) gate(key flowkey.FlowKey, estiDelay uint64, ts uint64) {
	f.cm.Update(key, 1)
	if f.cm.Query(key) < fdFilterGateThreshold {
		f.ifpd.lookupAndStore(f.ifpdIndex(key), key, estiDelay)
		return
	}

	old, ok := f.ifpd.lookupAndStore(f.ifpdIndex(key), key, estiDelay)
	if ok && jitterRule(f.cfg, old, estiDelay) {
		f.events = append(f.events, AbnormalEvent{Key: key, OldIFPD: old, NewIFPD: estiDelay, TimestampUs: ts})
	}
}

func (f *FDFilter) ifpdIndex(key flowkey.FlowKey) int {
	return int(f.ifpdH.HashKey(key) % uint32(f.ifpd.len()))
}

// AbnormalEvents returns every event reported so far.
func (f *FDFilter) AbnormalEvents() []AbnormalEvent { return f.events }

// Size reports the total fixed backing-storage footprint.
func (f *FDFilter) Size() int {
	total := f.gbf.SizeBytes() + f.cm.SizeBytes() + f.ifpd.sizeBytes()
	for _, b := range f.bfs {
		total += b.SizeBytes()
	}
	return total
}

// Clear restores post-construction state.
func (f *FDFilter) Clear() {
	f.resetState()
}
