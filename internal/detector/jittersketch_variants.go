package detector

import "github.com/jitterbench/jitterbench/internal/flowkey"

// maxSmallWide is SMALL's cap for plain JitterSketch, a 32-bit-range
// capped IFPD type.
const maxSmallWide = 0xFFFFFFFF

// maxSmallNarrow is SMALL's cap for JitterSketchS1Opt, a 16-bit-range
// capped IFPD type -- narrower, so S2 entries overflow into S3 at smaller
// delays. Both variants store smallIFPD in the same uint64 field, so the
// S2 cell itself is the same size.
const maxSmallNarrow = 0xFFFF

// JitterSketchParams configures the plain three-stage JitterSketch.
type JitterSketchParams struct {
	W1, W2, W3, D3 int
}

// JitterSketch is the three-stage filtered detector of spec.md §4.7.3,
// using one BOBHash32 per packet (split via division/rotation into
// per-stage indices) and a single S1 candidate cell per key.
type JitterSketch struct {
	core *jitterSketchCore
	init uint64
}

// NewJitterSketch allocates a JitterSketch with the given parameters.
func NewJitterSketch(cfg Config, p JitterSketchParams) *JitterSketch {
	return &JitterSketch{core: newJitterSketchCore(cfg, p.W1, p.W2, p.W3, p.D3, 1, maxSmallWide, false)}
}

// SetInitTime records the run's starting timestamp.
func (j *JitterSketch) SetInitTime(ts uint64) { j.init = ts }

// Update implements spec.md §4.7.3.
func (j *JitterSketch) Update(key flowkey.FlowKey, ts uint64) uint64 { return j.core.update(key, ts) }

// AbnormalEvents returns every event reported so far.
func (j *JitterSketch) AbnormalEvents() []AbnormalEvent { return j.core.events }

// Size reports the total fixed backing-storage footprint.
func (j *JitterSketch) Size() int { return j.core.sizeBytes() }

// Clear restores post-construction state.
func (j *JitterSketch) Clear() { j.core.clear() }

// JitterSketchS1OptParams configures the S1-optimized three-stage
// detector: s1HashNum parallel S1 candidates and three independent
// BOBHash32 instances, one per stage.
type JitterSketchS1OptParams struct {
	W1, W2, W3, D3 int
	S1HashNum      int
}

// JitterSketchS1Opt is JitterSketch generalized to s1_hash_num parallel S1
// candidate cells and independent per-stage hashing, with a narrower
// SMALL cap in S2.
type JitterSketchS1Opt struct {
	core *jitterSketchCore
	init uint64
}

// NewJitterSketchS1Opt allocates a JitterSketchS1Opt with the given
// parameters.
func NewJitterSketchS1Opt(cfg Config, p JitterSketchS1OptParams) *JitterSketchS1Opt {
	return &JitterSketchS1Opt{core: newJitterSketchCore(cfg, p.W1, p.W2, p.W3, p.D3, p.S1HashNum, maxSmallNarrow, true)}
}

// SetInitTime records the run's starting timestamp.
func (j *JitterSketchS1Opt) SetInitTime(ts uint64) { j.init = ts }

// Update implements the S1-optimized variant of spec.md §4.7.3.
func (j *JitterSketchS1Opt) Update(key flowkey.FlowKey, ts uint64) uint64 {
	return j.core.update(key, ts)
}

// AbnormalEvents returns every event reported so far.
func (j *JitterSketchS1Opt) AbnormalEvents() []AbnormalEvent { return j.core.events }

// Size reports the total fixed backing-storage footprint.
func (j *JitterSketchS1Opt) Size() int { return j.core.sizeBytes() }

// Clear restores post-construction state.
func (j *JitterSketchS1Opt) Clear() { j.core.clear() }

var (
	_ Detector = (*JitterSketch)(nil)
	_ Detector = (*JitterSketchS1Opt)(nil)
	_ Detector = (*FDFilter)(nil)
	_ Detector = (*DelaySketch)(nil)
	_ Detector = (*GroundTruthDetector)(nil)
)
