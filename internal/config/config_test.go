package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jitterbench/jitterbench/internal/config"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "jitterbench.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.jsonc"))
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeConfig(t, `{ not valid json `)
	_, err := config.Load(path)
	require.ErrorIs(t, err, config.ErrConfigInvalid)
}

func TestLoad_AppliesGeneralDefaultsWhenOmitted(t *testing.T) {
	path := writeConfig(t, `{
  "general": { "data_file": "trace.bin", "mem_size": 1048576 }
}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "trace.bin", cfg.General.DataFile)
	require.Equal(t, 1048576, cfg.General.MemSize)
	require.InDelta(t, 2.0, cfg.General.JitterFactor, 1e-9)
	require.Equal(t, uint64(500), cfg.General.MinAbsoluteJitterThres)
	require.Equal(t, uint64(1_000_000), cfg.General.MaxIFPDDiff)
	require.Equal(t, 2, cfg.General.JitterDetectionMode)
	require.Equal(t, uint64(30), cfg.General.FrequencyThreshold)
}

// JSONC comments and trailing commas (hujson) are accepted.
func TestLoad_AcceptsJSONCComments(t *testing.T) {
	path := writeConfig(t, `{
  // packet trace path
  "general": {
    "data_file": "trace.bin",
    "mem_size": 1048576,
    "jitter_factor": 3.5, // overridden
  },
}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.InDelta(t, 3.5, cfg.General.JitterFactor, 1e-9)
}

func TestFDFilterParams_DerivesDimensionsFromMemSize(t *testing.T) {
	path := writeConfig(t, `{
  "general": { "mem_size": 1048576 }
}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	p := cfg.FDFilterParams()
	require.Greater(t, p.CMWidth, 0)
	require.Greater(t, p.IFPDTableSize, 0)
	require.Equal(t, uint64(2_000_000), p.DelayThres)
}

func TestFDFilterParams_ExplicitOverridesWin(t *testing.T) {
	path := writeConfig(t, `{
  "general": { "mem_size": 1048576 },
  "FDFilter": { "k": 5, "kk": 6, "delay_thres": 999 }
}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	p := cfg.FDFilterParams()
	require.Equal(t, 5, p.K)
	require.Equal(t, 6, p.KK)
	require.Equal(t, uint64(999), p.DelayThres)
}

func TestJitterControlConfig_ReadsSection(t *testing.T) {
	path := writeConfig(t, `{
  "general": { "mem_size": 1048576 },
  "JitterControlExperiment": { "max_buffers": 4096, "buffer_timeout_us": 2000000, "b_size": 20 }
}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	jc := cfg.JitterControlConfig()
	require.Equal(t, 4096, jc.MaxBuffers)
	require.Equal(t, uint64(2_000_000), jc.BufferTimeoutUs)
	require.Equal(t, 20, jc.BSize)
}

func TestDetectorConfig_MatchesGeneralSection(t *testing.T) {
	path := writeConfig(t, `{
  "general": { "mem_size": 1048576, "jitter_detection_mode": 1 }
}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	dc := cfg.DetectorConfig()
	require.Equal(t, 1, dc.JitterDetectionMode)
}
