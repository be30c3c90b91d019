package detector

import "github.com/jitterbench/jitterbench/internal/flowkey"

// GroundTruthDetector is the exact oracle detectors are scored against.
// It keeps one entry per flow in plain maps -- unlike every approximate
// detector, its memory grows with the number of distinct flows, which is
// exactly why it exists only in internal/eval's scoring path and never as
// a candidate for the mem_size budget.
type GroundTruthDetector struct {
	cfg Config

	flowLastTs   map[flowkey.FlowKey]uint64
	flowLastIFPD map[flowkey.FlowKey]uint64
	hasLastIFPD  map[flowkey.FlowKey]bool
	flowCounts   map[flowkey.FlowKey]uint64
	events       []AbnormalEvent
	initTime     uint64
}

// NewGroundTruthDetector constructs an oracle with the given detection
// parameters.
func NewGroundTruthDetector(cfg Config) *GroundTruthDetector {
	g := &GroundTruthDetector{cfg: cfg}
	g.reset()
	return g
}

func (g *GroundTruthDetector) reset() {
	g.flowLastTs = make(map[flowkey.FlowKey]uint64)
	g.flowLastIFPD = make(map[flowkey.FlowKey]uint64)
	g.hasLastIFPD = make(map[flowkey.FlowKey]bool)
	g.flowCounts = make(map[flowkey.FlowKey]uint64)
	g.events = nil
}

// SetInitTime records ts, which the oracle never reads: it needs no
// sliding-window anchor, only deltas between consecutive packets of a flow.
func (g *GroundTruthDetector) SetInitTime(ts uint64) {
	g.initTime = ts
}

// Update implements spec.md §4.6 verbatim.
func (g *GroundTruthDetector) Update(key flowkey.FlowKey, ts uint64) uint64 {
	lastTs, seen := g.flowLastTs[key]

	var realDelay uint64
	if seen {
		realDelay = ts - lastTs
	}
	g.flowLastTs[key] = ts

	g.flowCounts[key]++

	if g.flowCounts[key] >= g.cfg.FrequencyThreshold {
		if old, ok := g.hasLastIFPDLookup(key); ok {
			if jitterRule(g.cfg, old, realDelay) {
				g.events = append(g.events, AbnormalEvent{
					Key:         key,
					OldIFPD:     old,
					NewIFPD:     realDelay,
					TimestampUs: ts,
				})
			}
		}
	}

	g.flowLastIFPD[key] = realDelay
	g.hasLastIFPD[key] = true

	return realDelay
}

func (g *GroundTruthDetector) hasLastIFPDLookup(key flowkey.FlowKey) (uint64, bool) {
	if !g.hasLastIFPD[key] {
		return 0, false
	}
	return g.flowLastIFPD[key], true
}

// AbnormalEvents returns every event reported so far.
func (g *GroundTruthDetector) AbnormalEvents() []AbnormalEvent {
	return g.events
}

// Size reports 0: the oracle's footprint is unbounded and out of scope
// for the mem_size budget by construction (spec.md §4.6 is exact, not a
// sketch).
func (g *GroundTruthDetector) Size() int {
	return 0
}

// Clear empties all maps and the event log, restoring post-construction
// state.
func (g *GroundTruthDetector) Clear() {
	g.reset()
}
