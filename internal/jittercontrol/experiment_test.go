package jittercontrol_test

import (
	"testing"

	"github.com/jitterbench/jitterbench/internal/detector"
	"github.com/jitterbench/jitterbench/internal/flowkey"
	"github.com/jitterbench/jitterbench/internal/jittercontrol"
	"github.com/jitterbench/jitterbench/internal/optimizer"
	"github.com/jitterbench/jitterbench/internal/trace"
	"github.com/stretchr/testify/require"
)

func steadyRecords(key flowkey.FlowKey, n int, spacingUs uint64) []trace.Record {
	recs := make([]trace.Record, n)
	ts := uint64(0)
	for i := 0; i < n; i++ {
		recs[i] = trace.Record{Key: key, TimestampUs: ts}
		ts += spacingUs
	}
	return recs
}

// Scenario A: empty stream yields zero metrics.
func TestExperiment_EmptyStream(t *testing.T) {
	exp := jittercontrol.New(jittercontrol.Config{MaxBuffers: 16, BufferTimeoutUs: 1_000_000}, optimizer.NewOLDC(20), 30)
	m := exp.Run(nil)
	require.Zero(t, m.SumOriginalV)
	require.Zero(t, m.SumOptimizedV)
	require.Zero(t, m.FlowsConsidered)
}

// Scenario B: a single steady flow has zero delay variation before and
// after optimization, since OLDC always admits and every clamp is a
// no-op on a perfectly regular stream.
func TestExperiment_SteadyStream_ZeroVariation(t *testing.T) {
	key := flowkey.New(1, 2, 3, 4, 6)
	recs := steadyRecords(key, 100, 1000)

	exp := jittercontrol.New(jittercontrol.Config{MaxBuffers: 16, BufferTimeoutUs: 1_000_000}, optimizer.NewOLDC(20), 30)
	m := exp.Run(recs)

	require.Equal(t, 1, m.FlowsConsidered)
	require.InDelta(t, 0, m.SumOriginalV, 1e-6)
	require.InDelta(t, 0, m.SumOptimizedV, 1e-6)
}

// Flows shorter than frequency_threshold do not contribute to the metric.
func TestExperiment_FrequencyThresholdExcludesShortFlows(t *testing.T) {
	key := flowkey.New(1, 2, 3, 4, 6)
	recs := steadyRecords(key, 5, 1000)

	exp := jittercontrol.New(jittercontrol.Config{MaxBuffers: 16, BufferTimeoutUs: 1_000_000}, optimizer.NewOLDC(20), 30)
	m := exp.Run(recs)

	require.Zero(t, m.FlowsConsidered)
}

// A sketch-gated optimizer with a one-slot pool runs over several steady
// flows without panicking. The steady flows raise no jitter event, so no
// flow is admitted to the pool here.
func TestExperiment_FullPoolDropsSilently(t *testing.T) {
	cfg := detector.Config{
		JitterFactor:           2.0,
		MinAbsoluteJitterThres: 500,
		MaxIFPDDiff:            1_000_000,
		JitterDetectionMode:    detector.ModeEither,
		FrequencyThreshold:     30,
	}
	sketchOpt := optimizer.NewJitterSketchOptimizer(20,
		optimizer.JitterSketchOptimizerParams{W1: 256, W2: 128, W3: 32, D3: 4}, cfg)

	var recs []trace.Record
	for flow := uint32(0); flow < 5; flow++ {
		k := flowkey.New(flow, flow+1, uint16(flow), uint16(flow+1), 6)
		recs = append(recs, steadyRecords(k, 40, 1000)...)
	}

	exp := jittercontrol.New(jittercontrol.Config{MaxBuffers: 1, BufferTimeoutUs: 1_000_000}, sketchOpt, 30)
	require.NotPanics(t, func() { exp.Run(recs) })
}

// End-of-stream flush: a single flow that never times out (so it is only
// released by the final flush pass) runs through and is counted in the
// metrics.
func TestExperiment_EndOfStreamFlush(t *testing.T) {
	key := flowkey.New(9, 9, 9, 9, 17)
	recs := steadyRecords(key, 50, 1000)

	exp := jittercontrol.New(jittercontrol.Config{MaxBuffers: 4, BufferTimeoutUs: 1_000_000_000}, optimizer.NewOLDC(5), 30)
	m := exp.Run(recs)

	require.Equal(t, 1, m.FlowsConsidered)
}
