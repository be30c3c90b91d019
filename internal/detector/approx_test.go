package detector_test

import (
	"testing"

	"github.com/jitterbench/jitterbench/internal/detector"
	"github.com/jitterbench/jitterbench/internal/flowkey"
	"github.com/stretchr/testify/require"
)

func approxDetectors(cfg detector.Config) map[string]detector.Detector {
	return map[string]detector.Detector{
		"FDFilter": detector.NewFDFilter(cfg, detector.FDFilterParams{
			K: 3, KK: 4, NBits: 4096, NumHash: 3,
			GNBits: 8192, GNumHash: 3,
			CMDepth: 3, CMWidth: 2048,
			IFPDTableSize: 1024,
			DelayThres:    2_000_000,
		}),
		"DelaySketch": detector.NewDelaySketch(cfg, detector.DelaySketchParams{
			D: 4, W: 512,
			CMDepth: 3, CMWidth: 2048,
			IFPDTableSize: 1024,
		}),
		"JitterSketch": detector.NewJitterSketch(cfg, detector.JitterSketchParams{
			W1: 512, W2: 256, W3: 64, D3: 4,
		}),
		"JitterSketchS1Opt": detector.NewJitterSketchS1Opt(cfg, detector.JitterSketchS1OptParams{
			W1: 512, W2: 256, W3: 64, D3: 4, S1HashNum: 2,
		}),
	}
}

func TestApproxDetectors_FirstObservationReturnsZero(t *testing.T) {
	for name, d := range approxDetectors(defaultConfig()) {
		t.Run(name, func(t *testing.T) {
			d.SetInitTime(0)
			k := flowkey.New(1, 2, 3, 4, 6)
			require.Equal(t, uint64(0), d.Update(k, 1000))
		})
	}
}

func TestApproxDetectors_ClearEmptiesEvents(t *testing.T) {
	for name, d := range approxDetectors(defaultConfig()) {
		t.Run(name, func(t *testing.T) {
			d.SetInitTime(0)
			ts := uint64(0)
			k := flowkey.New(1, 2, 3, 4, 6)
			for i := 0; i < 50; i++ {
				d.Update(k, ts)
				ts += 1000
			}
			d.Clear()
			require.Empty(t, d.AbnormalEvents())
		})
	}
}

// TestApproxDetectors_ClearRoundTrip is Scenario F / property 2 for the
// approximate detectors: Clear must restore byte-identical state,
// including hash identity, so replaying the same multi-flow stream after
// a Clear reports the exact same events. A detector whose Clear
// reconstructs its hash instances would remap keys to different
// indices post-clear and silently diverge on the second pass.
func TestApproxDetectors_ClearRoundTrip(t *testing.T) {
	for name, d := range approxDetectors(defaultConfig()) {
		t.Run(name, func(t *testing.T) {
			feed := func() {
				d.SetInitTime(0)
				ts := uint64(0)
				for flow := uint32(0); flow < 20; flow++ {
					k := flowkey.New(flow, flow+1, uint16(flow), uint16(flow+1), 6)
					for i := 1; i <= 60; i++ {
						if i == 41 {
							ts += 5000
						} else {
							ts += 1000
						}
						d.Update(k, ts)
					}
				}
			}

			feed()
			first := append([]detector.AbnormalEvent(nil), d.AbnormalEvents()...)

			d.Clear()
			require.Empty(t, d.AbnormalEvents())

			feed()
			second := d.AbnormalEvents()

			require.Equal(t, first, second)
		})
	}
}

func TestApproxDetectors_SizeIsPositive(t *testing.T) {
	for name, d := range approxDetectors(defaultConfig()) {
		t.Run(name, func(t *testing.T) {
			require.Greater(t, d.Size(), 0)
		})
	}
}

func TestApproxDetectors_ManyFlowsDoNotPanic(t *testing.T) {
	for name, d := range approxDetectors(defaultConfig()) {
		t.Run(name, func(t *testing.T) {
			d.SetInitTime(0)
			ts := uint64(0)
			for flow := uint32(0); flow < 200; flow++ {
				k := flowkey.New(flow, flow+1, uint16(flow), uint16(flow+1), 6)
				for i := 0; i < 20; i++ {
					d.Update(k, ts)
					ts += 1000
				}
			}
		})
	}
}
