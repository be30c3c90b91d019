package detector_test

import (
	"testing"

	"github.com/jitterbench/jitterbench/internal/detector"
	"github.com/jitterbench/jitterbench/internal/flowkey"
	"github.com/stretchr/testify/require"
)

func defaultConfig() detector.Config {
	return detector.Config{
		JitterFactor:           2.0,
		MinAbsoluteJitterThres: 500,
		MaxIFPDDiff:            1_000_000,
		JitterDetectionMode:    detector.ModeEither,
		FrequencyThreshold:     30,
	}
}

// Scenario A: empty stream.
func TestGroundTruth_EmptyStream(t *testing.T) {
	g := detector.NewGroundTruthDetector(defaultConfig())
	require.Empty(t, g.AbnormalEvents())
}

// Scenario B: single-flow steady stream, 100 packets 1000us apart.
func TestGroundTruth_SteadyStream_NoEvents(t *testing.T) {
	g := detector.NewGroundTruthDetector(defaultConfig())
	k := flowkey.New(1, 2, 3, 4, 6)

	ts := uint64(0)
	for i := 0; i < 100; i++ {
		g.Update(k, ts)
		ts += 1000
	}

	require.Empty(t, g.AbnormalEvents())
}

// Scenario C: one flow, 40 packets at 1000us spacing, then one 5000us
// gap at packet 41. The stream stops at the spike (matching
// internal/eval/jittertest_test.go's buildRecordsWithOneSpike), so mode
// Either's acceleration rule never gets a packet 42 to fire against and
// the oracle emits exactly one event.
func TestGroundTruth_SingleDeceleratingJitter(t *testing.T) {
	g := detector.NewGroundTruthDetector(defaultConfig())
	k := flowkey.New(1, 2, 3, 4, 6)

	ts := uint64(0)
	var fortyFirstTs uint64
	for i := 1; i <= 41; i++ {
		if i == 41 {
			ts += 5000
			fortyFirstTs = ts
		} else {
			ts += 1000
		}
		g.Update(k, ts)
	}

	events := g.AbnormalEvents()
	require.Len(t, events, 1)
	require.Equal(t, uint64(1000), events[0].OldIFPD)
	require.Equal(t, uint64(5000), events[0].NewIFPD)
	require.Equal(t, fortyFirstTs, events[0].TimestampUs)
}

// Property 1: Update returns 0 on first observation.
func TestGroundTruth_FirstObservationReturnsZero(t *testing.T) {
	g := detector.NewGroundTruthDetector(defaultConfig())
	k := flowkey.New(9, 9, 9, 9, 9)
	require.Equal(t, uint64(0), g.Update(k, 12345))
}

// Property 2 / Scenario F: clear() round-trip.
func TestGroundTruth_ClearRoundTrip(t *testing.T) {
	g := detector.NewGroundTruthDetector(defaultConfig())
	k := flowkey.New(1, 2, 3, 4, 6)

	feed := func() {
		ts := uint64(0)
		for i := 1; i <= 60; i++ {
			if i == 41 {
				ts += 5000
			} else {
				ts += 1000
			}
			g.Update(k, ts)
		}
	}

	feed()
	first := append([]detector.AbnormalEvent(nil), g.AbnormalEvents()...)

	g.Clear()
	require.Empty(t, g.AbnormalEvents())

	feed()
	second := g.AbnormalEvents()

	require.Equal(t, first, second)
}

// Property 3: event emitted iff rule holds AND threshold bounds AND
// frequency threshold met.
func TestGroundTruth_FrequencyThresholdGates(t *testing.T) {
	cfg := defaultConfig()
	cfg.FrequencyThreshold = 1000 // never reached in this short stream
	g := detector.NewGroundTruthDetector(cfg)
	k := flowkey.New(1, 2, 3, 4, 6)

	ts := uint64(0)
	for i := 1; i <= 45; i++ {
		if i == 41 {
			ts += 5000
		} else {
			ts += 1000
		}
		g.Update(k, ts)
	}

	require.Empty(t, g.AbnormalEvents(), "frequency_threshold not met, no event expected")
}
