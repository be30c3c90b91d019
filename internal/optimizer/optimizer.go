// Package optimizer implements the two jitter-control re-timing
// transforms of spec.md §4.8: OLDC (Online Delay Compensation) and the
// sketch-gated JitterSketchOptimizer.
package optimizer

import (
	"github.com/jitterbench/jitterbench/internal/detector"
	"github.com/jitterbench/jitterbench/internal/flowkey"
)

// Config is the detection parameter bundle an optimizer's embedded
// sketch (if any) is configured with. It is the same shape as
// detector.Config; JitterSketchOptimizer passes it straight through to
// its embedded JitterSketch.
type Config = detector.Config

// Optimizer is the capability every re-timing transform implements.
type Optimizer interface {
	Configure(cfg Config)
	Optimize(timestamps []uint64) []uint64
	Name() string
}

// JitterGater is implemented by sketch-gated optimizers: the jitter
// control experiment uses HasJitter to decide buffer admission, calling
// ProcessPacket first for every record.
type JitterGater interface {
	ProcessPacket(key flowkey.FlowKey, ts uint64)
	HasJitter(key flowkey.FlowKey) bool
}
