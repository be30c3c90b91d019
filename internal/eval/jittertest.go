// Package eval implements the evaluation harness of spec.md §4.10: score
// an approximate Detector against a GroundTruthDetector oracle over the
// same record stream and report precision/recall/F1/throughput.
package eval

import (
	"sort"
	"time"

	"github.com/jitterbench/jitterbench/internal/detector"
	"github.com/jitterbench/jitterbench/internal/flowkey"
	"github.com/jitterbench/jitterbench/internal/trace"
)

// timeThresholdUs is the greedy matching window of spec.md §4.10.
const timeThresholdUs = 500_000

// ifpdThresholdUs bounds mode-1 strict IFPD equality matching. Unused by
// the harness today (matching_mode defaults to 0, per the spec's open
// question) but kept so a future mode-1 enablement has a home.
const ifpdThresholdUs = 1_000

// MatchingMode selects how a sketch event is matched against a ground
// truth event within the time window. Mode 0 (time-only) is the default;
// mode 1 additionally requires IFPD equality and is used by Run only when
// the caller passes it, per spec.md §9's open question.
type MatchingMode int

const (
	// MatchingModeTimeOnly matches on timestamp proximity alone.
	MatchingModeTimeOnly MatchingMode = 0
	// MatchingModeStrictIFPD additionally requires the matched events'
	// IFPD values to agree within ifpdThresholdUs.
	MatchingModeStrictIFPD MatchingMode = 1
)

// Result reports one detector's scoring run.
type Result struct {
	DetectorName   string
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
	ThroughputMpps float64
}

// JitterTest runs the evaluation harness of spec.md §4.10.
type JitterTest struct {
	Config       detector.Config
	MatchingMode MatchingMode
}

// New constructs a JitterTest with the given detection parameter bundle
// and matching mode (default MatchingModeTimeOnly).
func New(cfg detector.Config, mode MatchingMode) *JitterTest {
	return &JitterTest{Config: cfg, MatchingMode: mode}
}

// Run scores name/d against the ground truth built from the same
// records, returning a Result.
func (jt *JitterTest) Run(name string, d detector.Detector, records []trace.Record) Result {
	truth := detector.NewGroundTruthDetector(jt.Config)
	if len(records) > 0 {
		truth.SetInitTime(records[0].TimestampUs)
	}
	for _, rec := range records {
		truth.Update(rec.Key, rec.TimestampUs)
	}

	d.Clear()
	if len(records) > 0 {
		d.SetInitTime(records[0].TimestampUs)
	}

	start := time.Now()
	for _, rec := range records {
		d.Update(rec.Key, rec.TimestampUs)
	}
	elapsed := time.Since(start)

	truthEvents := groupByFlow(truth.AbnormalEvents())
	sketchEvents := groupByFlow(d.AbnormalEvents())

	tp, fp, fn := jt.match(truthEvents, sketchEvents)

	res := Result{
		DetectorName:   name,
		TruePositives:  tp,
		FalsePositives: fp,
		FalseNegatives: fn,
	}
	if tp+fp > 0 {
		res.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		res.Recall = float64(tp) / float64(tp+fn)
	}
	if res.Precision+res.Recall > 0 {
		res.F1 = 2 * res.Precision * res.Recall / (res.Precision + res.Recall)
	}
	if sec := elapsed.Seconds(); sec > 0 {
		res.ThroughputMpps = float64(len(records)) / sec / 1e6
	}
	return res
}

func groupByFlow(events []detector.AbnormalEvent) map[flowkey.FlowKey][]detector.AbnormalEvent {
	m := make(map[flowkey.FlowKey][]detector.AbnormalEvent)
	for _, e := range events {
		m[e.Key] = append(m[e.Key], e)
	}
	for k := range m {
		evs := m[k]
		sort.Slice(evs, func(i, j int) bool { return evs[i].TimestampUs < evs[j].TimestampUs })
		m[k] = evs
	}
	return m
}

// match performs the greedy per-flow matching of spec.md §4.10 step 4:
// for each sketch event in timestamp order, find the first unmatched
// truth event of the same flow within timeThresholdUs. FP and FN are
// both derived from this single matching (sketchCount-TP, truthCount-TP)
// so property 9's FP+TP=|sketchEvents| and FN+TP=|truthEvents| hold by
// construction rather than by two independently-greedy passes agreeing.
func (jt *JitterTest) match(truth, sketch map[flowkey.FlowKey][]detector.AbnormalEvent) (tp, fp, fn int) {
	var sketchCount, truthCount int

	for key, sketchEvs := range sketch {
		truthEvs := truth[key]
		matched := make([]bool, len(truthEvs))
		sketchCount += len(sketchEvs)

		for _, se := range sketchEvs {
			found := -1
			for i, te := range truthEvs {
				if matched[i] {
					continue
				}
				if !withinWindow(se.TimestampUs, te.TimestampUs) {
					continue
				}
				if jt.MatchingMode == MatchingModeStrictIFPD && !ifpdEqual(se, te) {
					continue
				}
				found = i
				break
			}
			if found >= 0 {
				matched[found] = true
				tp++
			}
		}
	}

	for _, truthEvs := range truth {
		truthCount += len(truthEvs)
	}

	fp = sketchCount - tp
	fn = truthCount - tp
	return tp, fp, fn
}

func withinWindow(a, b uint64) bool {
	var d uint64
	if a > b {
		d = a - b
	} else {
		d = b - a
	}
	return d <= timeThresholdUs
}

func ifpdEqual(a, b detector.AbnormalEvent) bool {
	var d uint64
	if a.NewIFPD > b.NewIFPD {
		d = a.NewIFPD - b.NewIFPD
	} else {
		d = b.NewIFPD - a.NewIFPD
	}
	return d <= ifpdThresholdUs
}
