package optimizer

import (
	"github.com/jitterbench/jitterbench/internal/detector"
	"github.com/jitterbench/jitterbench/internal/flowkey"
)

// JitterSketchOptimizerParams configures the embedded JitterSketch's
// memory budget, partitioned by the same stage ratios as a standalone
// JitterSketch detector (spec.md §4.8).
type JitterSketchOptimizerParams = detector.JitterSketchParams

// JitterSketchOptimizer wraps an embedded JitterSketch to gate buffer
// admission in the jitter-control experiment: ProcessPacket feeds the
// sketch, and any flow involved in the sketch's latest abnormal event is
// marked jittered. Optimize itself is the same OLDC transform.
type JitterSketchOptimizer struct {
	sketch *detector.JitterSketch
	oldc   *OLDC

	jitteredFlows map[flowkey.FlowKey]struct{}
	eventsSeen    int
}

// NewJitterSketchOptimizer allocates a JitterSketchOptimizer with
// buffering horizon b and the given embedded-sketch memory parameters.
func NewJitterSketchOptimizer(b int, p JitterSketchOptimizerParams, cfg Config) *JitterSketchOptimizer {
	o := &JitterSketchOptimizer{
		sketch:        detector.NewJitterSketch(cfg, p),
		oldc:          NewOLDC(b),
		jitteredFlows: make(map[flowkey.FlowKey]struct{}),
	}
	o.oldc.Configure(cfg)
	return o
}

// Configure stores cfg on the wrapped OLDC; the embedded sketch keeps the
// detection parameters and backing arrays it was constructed with
// (Configure is not Clear).
func (o *JitterSketchOptimizer) Configure(cfg Config) {
	o.oldc.Configure(cfg)
}

// Name returns "JitterSketchOptimizer".
func (o *JitterSketchOptimizer) Name() string { return "JitterSketchOptimizer" }

// ProcessPacket feeds the embedded sketch and marks key jittered if this
// packet produced a new abnormal event.
func (o *JitterSketchOptimizer) ProcessPacket(key flowkey.FlowKey, ts uint64) {
	o.sketch.Update(key, ts)

	events := o.sketch.AbnormalEvents()
	if len(events) > o.eventsSeen {
		for _, e := range events[o.eventsSeen:] {
			o.jitteredFlows[e.Key] = struct{}{}
		}
		o.eventsSeen = len(events)
	}
}

// HasJitter reports whether key has ever been implicated in an abnormal
// event reported by the embedded sketch.
func (o *JitterSketchOptimizer) HasJitter(key flowkey.FlowKey) bool {
	_, ok := o.jitteredFlows[key]
	return ok
}

// Optimize applies the same anchored-average transform as OLDC.
func (o *JitterSketchOptimizer) Optimize(timestamps []uint64) []uint64 {
	return o.oldc.Optimize(timestamps)
}

var (
	_ Optimizer   = (*OLDC)(nil)
	_ Optimizer   = (*JitterSketchOptimizer)(nil)
	_ JitterGater = (*JitterSketchOptimizer)(nil)
)
