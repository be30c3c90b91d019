package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jitterbench/jitterbench/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestRun_Help(t *testing.T) {
	var out, errOut bytes.Buffer
	code := cli.Run(nil, &out, &errOut, []string{"jitterbench", "--help"}, nil, nil)
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "usage: jitterbench")
	require.Contains(t, out.String(), "--report-file")
}

func TestRun_MissingConfigArgument(t *testing.T) {
	var out, errOut bytes.Buffer
	code := cli.Run(nil, &out, &errOut, []string{"jitterbench"}, nil, nil)
	require.NotEqual(t, 0, code)
	require.Contains(t, errOut.String(), "expected exactly one config path")
}

func TestRun_UnreadableConfigPath(t *testing.T) {
	var out, errOut bytes.Buffer
	code := cli.Run(nil, &out, &errOut, []string{"jitterbench", filepath.Join(t.TempDir(), "missing.jsonc")}, nil, nil)
	require.NotEqual(t, 0, code)
	require.Contains(t, errOut.String(), "config file not found")
}

func TestRun_EmptyTraceProducesZeroMetrics(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.bin")
	require.NoError(t, os.WriteFile(tracePath, nil, 0o644))

	cfgPath := filepath.Join(dir, "jitterbench.jsonc")
	body := `{
  "general": { "data_file": "` + strings.ReplaceAll(tracePath, `\`, `\\`) + `", "mem_size": 65536 },
  "JitterControlExperiment": { "max_buffers": 64, "buffer_timeout_us": 1000000, "b_size": 5 }
}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	var out, errOut bytes.Buffer
	code := cli.Run(nil, &out, &errOut, []string{"jitterbench", cfgPath}, nil, nil)
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "records loaded: 0")
	require.Contains(t, out.String(), "FDFilter")
	require.Contains(t, out.String(), "precision: 0\n")
	require.Contains(t, out.String(), "sum original V: 0\n")
}

func TestRun_WritesReportFileWhenRequested(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.bin")
	require.NoError(t, os.WriteFile(tracePath, nil, 0o644))

	cfgPath := filepath.Join(dir, "jitterbench.jsonc")
	body := `{
  "general": { "data_file": "` + strings.ReplaceAll(tracePath, `\`, `\\`) + `", "mem_size": 65536 },
  "JitterControlExperiment": { "max_buffers": 64, "buffer_timeout_us": 1000000, "b_size": 5 }
}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	reportPath := filepath.Join(dir, "report.txt")

	var out, errOut bytes.Buffer
	code := cli.Run(nil, &out, &errOut, []string{"jitterbench", "--report-file", reportPath, cfgPath}, nil, nil)
	require.Equal(t, 0, code)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "FDFilter")
}
