package eval

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"
)

// WriteReportFile renders results as plain text and atomically replaces
// path's contents, mirroring the teacher's atomic cache-replace write
// (cache_binary.go's LoadBinaryCache/write pairing) so a reader polling
// the report file never observes a torn write.
func WriteReportFile(path string, results []Result) error {
	var buf bytes.Buffer
	for _, r := range results {
		fmt.Fprintf(&buf, "%s precision=%.4f recall=%.4f f1=%.4f throughput_mpps=%.4f tp=%d fp=%d fn=%d\n",
			r.DetectorName, r.Precision, r.Recall, r.F1, r.ThroughputMpps, r.TruePositives, r.FalsePositives, r.FalseNegatives)
	}
	return atomic.WriteFile(path, &buf)
}
