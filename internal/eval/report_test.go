package eval_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jitterbench/jitterbench/internal/eval"
	"github.com/stretchr/testify/require"
)

func TestWriteReportFile_AtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	results := []eval.Result{
		{DetectorName: "FDFilter", Precision: 1, Recall: 0.5, F1: 0.666, ThroughputMpps: 3.2, TruePositives: 2, FalseNegatives: 2},
	}

	require.NoError(t, eval.WriteReportFile(path, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "FDFilter")

	// A second write fully replaces the prior contents rather than
	// appending to them.
	results2 := []eval.Result{{DetectorName: "DelaySketch"}}
	require.NoError(t, eval.WriteReportFile(path, results2))

	data2, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data2), "FDFilter")
}

func TestResult_StructuralDiff(t *testing.T) {
	a := eval.Result{DetectorName: "JitterSketch", TruePositives: 5, FalsePositives: 1, FalseNegatives: 2}
	b := eval.Result{DetectorName: "JitterSketch", TruePositives: 5, FalsePositives: 1, FalseNegatives: 2}

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("unexpected diff (-want +got):\n%s", diff)
	}
}
