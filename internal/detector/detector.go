// Package detector implements the ground-truth oracle and the four
// interchangeable approximate jitter detectors described in spec.md §4:
// FDFilter, DelaySketch, JitterSketch, and JitterSketchS1Opt.
//
// Every detector implements the Detector capability interface; the
// evaluation harness (internal/eval) and jitter-control experiment
// (internal/jittercontrol) hold that interface, never a concrete type.
package detector

import "github.com/jitterbench/jitterbench/internal/flowkey"

// Config bundles the jitter-detection parameters shared by every
// detector, so the recurring (jitter_factor, min_absolute_jitter_thres,
// max_ifpd_diff, jitter_detection_mode, frequency_threshold) quintuple is
// passed as one value rather than five positional arguments.
type Config struct {
	// JitterFactor scales the deceleration/acceleration comparison.
	JitterFactor float64

	// MinAbsoluteJitterThres and MaxIFPDDiff bound the absolute IFPD
	// delta an event must fall within (exclusive on both ends), in
	// microseconds.
	MinAbsoluteJitterThres uint64
	MaxIFPDDiff            uint64

	// JitterDetectionMode selects which rule triggers a report:
	// 0 deceleration, 1 acceleration, 2 either.
	JitterDetectionMode int

	// FrequencyThreshold is the minimum per-flow packet count (or, for
	// approximate detectors, its sketch-estimated proxy) before jitter
	// reporting is considered for a flow.
	FrequencyThreshold uint64
}

// Detection modes, named for readability at call sites.
const (
	ModeDeceleration = 0
	ModeAcceleration = 1
	ModeEither       = 2
)

// AbnormalEvent records one detected jitter event.
type AbnormalEvent struct {
	Key         flowkey.FlowKey
	OldIFPD     uint64
	NewIFPD     uint64
	TimestampUs uint64
}

// Detector is the capability every jitter detector (ground-truth and
// approximate alike) implements.
type Detector interface {
	// SetInitTime records the timestamp of the first record in a run,
	// used by detectors whose sliding windows need an anchor.
	SetInitTime(ts uint64)

	// Update processes one packet and returns the detector's estimate of
	// the inter-flow-packet delay for this packet. Returns 0 on the
	// first observation of a flow.
	Update(key flowkey.FlowKey, ts uint64) uint64

	// AbnormalEvents returns every jitter event reported so far, in
	// report order.
	AbnormalEvents() []AbnormalEvent

	// Size returns the detector's fixed backing-storage footprint in
	// bytes, for comparing against the configured mem_size budget.
	Size() int

	// Clear resets the detector to its post-construction state: arrays
	// zeroed, event log empty.
	Clear()
}

// jitterRule implements the shared deceleration/acceleration/either gate
// from spec.md §4.6, used identically by the ground-truth oracle and
// every approximate detector's gating stage.
//
// Returns whether an event should be reported for old -> real transition.
func jitterRule(cfg Config, old, real uint64) bool {
	deceleration := old > 0 && float64(real) > cfg.JitterFactor*float64(old)
	acceleration := real > 0 && float64(old) > cfg.JitterFactor*float64(real)

	var triggered bool
	switch cfg.JitterDetectionMode {
	case ModeDeceleration:
		triggered = deceleration
	case ModeAcceleration:
		triggered = acceleration
	default:
		triggered = deceleration || acceleration
	}
	if !triggered {
		return false
	}

	diff := absDiff(real, old)
	return diff > cfg.MinAbsoluteJitterThres && diff < cfg.MaxIFPDDiff
}

func absDiff(a, b uint64) uint64 {
	if a >= b {
		return a - b
	}
	return b - a
}
