// Package cli implements jitterbench's command-line entry point: parse
// flags, load configuration, run the evaluation harness and the
// jitter-control experiment, and report results to stdout.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jitterbench/jitterbench/internal/config"
	"github.com/jitterbench/jitterbench/internal/detector"
	"github.com/jitterbench/jitterbench/internal/eval"
	"github.com/jitterbench/jitterbench/internal/jittercontrol"
	"github.com/jitterbench/jitterbench/internal/optimizer"
	"github.com/jitterbench/jitterbench/internal/trace"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns the process exit code.
func Run(_ io.Reader, out io.Writer, errOut io.Writer, args []string, _ map[string]string, _ <-chan os.Signal) int {
	flags := flag.NewFlagSet("jitterbench", flag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.Usage = func() {}
	flags.SetOutput(&strings.Builder{})

	flagHelp := flags.BoolP("help", "h", false, "Show help")
	flagMatchingMode := flags.Int("matching-mode", 0, "Evaluation harness matching mode (0=time-only, 1=strict IFPD)")
	flagReportFile := flags.String("report-file", "", "Optional path to atomically write a plain-text detector report")

	if err := flags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)
		return 1
	}

	if *flagHelp {
		printUsage(out)
		return 0
	}

	positional := flags.Args()
	if len(positional) != 1 {
		fprintln(errOut, "error: expected exactly one config path argument")
		printUsage(errOut)
		return 1
	}

	cfg, err := config.Load(positional[0])
	if err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	records, err := trace.Load(cfg.General.DataFile)
	if err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	results := report(out, cfg, records, eval.MatchingMode(*flagMatchingMode))

	if *flagReportFile != "" {
		if err := eval.WriteReportFile(*flagReportFile, results); err != nil {
			fprintln(errOut, "error:", err)
			return 1
		}
	}

	return 0
}

func printUsage(w io.Writer) {
	fprintln(w, "usage: jitterbench <config_path>")
	fprintln(w, "  -h, --help              show this help")
	fprintln(w, "      --matching-mode n   evaluation harness matching mode (default 0)")
	fprintln(w, "      --report-file path  atomically write a plain-text report to path")
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

// report runs every approximate detector against ground truth, and the
// jitter-control experiment for OLDC and the sketch-gated optimizer,
// printing a banner followed by per-detector and per-optimizer summaries.
func report(out io.Writer, cfg config.Config, records []trace.Record, mode eval.MatchingMode) []eval.Result {
	fprintln(out, "jitterbench")
	fprintln(out, "records loaded:", len(records))
	fprintln(out)

	detCfg := cfg.DetectorConfig()
	detectors := map[string]detector.Detector{
		"FDFilter":          detector.NewFDFilter(detCfg, cfg.FDFilterParams()),
		"DelaySketch":       detector.NewDelaySketch(detCfg, cfg.DelaySketchParams()),
		"JitterSketch":      detector.NewJitterSketch(detCfg, cfg.JitterSketchParams()),
		"JitterSketchS1Opt": detector.NewJitterSketchS1Opt(detCfg, cfg.JitterSketchS1OptParams()),
	}

	jt := eval.New(detCfg, mode)
	fprintln(out, "-- detector evaluation --")
	var results []eval.Result
	for _, name := range []string{"FDFilter", "DelaySketch", "JitterSketch", "JitterSketchS1Opt"} {
		res := jt.Run(name, detectors[name], records)
		results = append(results, res)
		fprintln(out, name)
		fprintln(out, "  precision:", res.Precision)
		fprintln(out, "  recall:", res.Recall)
		fprintln(out, "  f1:", res.F1)
		fprintln(out, "  throughput (Mpps):", res.ThroughputMpps)
	}
	fprintln(out)

	fprintln(out, "-- jitter control --")
	oldcExp := jittercontrol.New(cfg.JitterControlConfig(), optimizer.NewOLDC(cfg.JitterControl.BSize), detCfg.FrequencyThreshold)
	printExperiment(out, "OLDC", oldcExp, records)

	sketchOpt := optimizer.NewJitterSketchOptimizer(cfg.JitterControl.BSize, cfg.DJSketchOptimizerParams(), detCfg)
	sketchExp := jittercontrol.New(cfg.JitterControlConfig(), sketchOpt, detCfg.FrequencyThreshold)
	printExperiment(out, "JitterSketchOptimizer", sketchExp, records)

	return results
}

func printExperiment(out io.Writer, name string, exp *jittercontrol.Experiment, records []trace.Record) {
	m := exp.Run(records)
	fprintln(out, name)
	fprintln(out, "  sum original V:", m.SumOriginalV)
	fprintln(out, "  sum optimized V:", m.SumOptimizedV)
	fprintln(out, "  reduction %:", m.ReductionPercent)
	fprintln(out, "  flows V>0 before:", m.FlowsWithVBefore)
	fprintln(out, "  flows V>0 after:", m.FlowsWithVAfter)
}
