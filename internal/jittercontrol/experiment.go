package jittercontrol

import (
	"sort"

	"github.com/jitterbench/jitterbench/internal/flowkey"
	"github.com/jitterbench/jitterbench/internal/optimizer"
	"github.com/jitterbench/jitterbench/internal/trace"
)

// Config bundles the JitterControlExperiment's own knobs (spec.md §6's
// JitterControlExperiment section), distinct from a detector's Config.
type Config struct {
	MaxBuffers      int
	BufferTimeoutUs uint64
	BSize           int // unused by the experiment itself; carried for parity with B in the optimizer's buffering horizon
}

// Metrics reports the per-run delay-variation summary of spec.md §4.9.
type Metrics struct {
	SumOriginalV      float64
	SumOptimizedV     float64
	ReductionPercent  float64
	FlowsWithVBefore  int
	FlowsWithVAfter   int
	FlowsConsidered   int
	FrequencyThreshold uint64
}

// Experiment runs the buffered jitter-control pipeline of spec.md §4.9
// over a full record stream.
type Experiment struct {
	cfg                Config
	frequencyThreshold uint64
	opt                optimizer.Optimizer
	gater              optimizer.JitterGater // nil if opt is not sketch-aware
}

// New constructs a JitterControlExperiment. frequencyThreshold is the
// general.frequency_threshold value: only flows whose total packet count
// in the stream reaches it contribute to the reported metric.
func New(cfg Config, opt optimizer.Optimizer, frequencyThreshold uint64) *Experiment {
	e := &Experiment{cfg: cfg, frequencyThreshold: frequencyThreshold, opt: opt}
	if g, ok := opt.(optimizer.JitterGater); ok {
		e.gater = g
	}
	return e
}

// Run sorts a copy of records by timestamp, executes the full algorithm
// of spec.md §4.9 over it, and returns the aggregate Metrics.
func (e *Experiment) Run(records []trace.Record) Metrics {
	sorted := make([]trace.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampUs < sorted[j].TimestampUs })

	pool := newBufferPool(e.cfg.MaxBuffers)
	originalByFlow := make(map[flowkey.FlowKey][]uint64)
	optimizedByFlow := make(map[flowkey.FlowKey][]uint64)

	flush := func(idx int) {
		s := &pool.slots[idx]
		key := s.key
		ts := append([]uint64(nil), s.timestamps...)
		optimizedByFlow[key] = append(optimizedByFlow[key], e.opt.Optimize(ts)...)
		pool.free(idx)
	}

	for _, rec := range sorted {
		key := rec.Key
		ts := rec.TimestampUs

		if e.gater != nil {
			e.gater.ProcessPacket(key, ts)
		}

		originalByFlow[key] = append(originalByFlow[key], ts)

		for _, idx := range pool.activeIndices() {
			s := &pool.slots[idx]
			if ts-s.lastArrival > e.cfg.BufferTimeoutUs {
				flush(idx)
			}
		}

		if idx, ok := pool.lookup(key); ok {
			pool.append(idx, ts)
			continue
		}

		admit := true
		if e.gater != nil {
			admit = e.gater.HasJitter(key)
		}
		if admit {
			pool.admit(key, ts)
		}
	}

	for _, idx := range pool.activeIndices() {
		flush(idx)
	}

	return e.computeMetrics(originalByFlow, optimizedByFlow)
}

func (e *Experiment) computeMetrics(original, optimized map[flowkey.FlowKey][]uint64) Metrics {
	var m Metrics
	m.FrequencyThreshold = e.frequencyThreshold

	for key, ts := range original {
		if uint64(len(ts)) < e.frequencyThreshold {
			continue
		}
		m.FlowsConsidered++

		v := delayVariation(ts)
		m.SumOriginalV += v
		if v > 0 {
			m.FlowsWithVBefore++
		}

		optTs, ok := optimized[key]
		if !ok {
			optTs = ts
		}
		ov := delayVariation(optTs)
		m.SumOptimizedV += ov
		if ov > 0 {
			m.FlowsWithVAfter++
		}
	}

	if m.SumOriginalV > 0 {
		m.ReductionPercent = (m.SumOriginalV - m.SumOptimizedV) / m.SumOriginalV * 100
	}

	return m
}
