// Package config loads jitterbench's JSONC configuration file (spec.md
// §6) in the teacher's style: hujson standardization followed by a
// typed unmarshal, with defaults applied per missing key and per-array
// dimensions derived from byte budgets.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jitterbench/jitterbench/internal/detector"
	"github.com/jitterbench/jitterbench/internal/jittercontrol"
	"github.com/jitterbench/jitterbench/internal/optimizer"
	"github.com/tailscale/hujson"
)

// ErrConfigFileNotFound is returned when the named config path does not
// exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// ErrConfigInvalid is returned when the config file is not valid JSONC
// or fails typed unmarshaling.
var ErrConfigInvalid = errors.New("invalid config file")

// General holds general.* keys, spec.md §6.
type General struct {
	DataFile               string  `json:"data_file"`
	MemSize                int     `json:"mem_size"`
	JitterFactor           float64 `json:"jitter_factor"`
	MinAbsoluteJitterThres uint64  `json:"min_absolute_jitter_thres"`
	MaxIFPDDiff            uint64  `json:"max_ifpd_diff"`
	JitterDetectionMode    int     `json:"jitter_detection_mode"`
	FrequencyThreshold     uint64  `json:"frequency_threshold"`
}

// DefaultGeneral returns general.* defaults per spec.md §6.
func DefaultGeneral() General {
	return General{
		JitterFactor:           2.0,
		MinAbsoluteJitterThres: 500,
		MaxIFPDDiff:            1_000_000,
		JitterDetectionMode:    2,
		FrequencyThreshold:     30,
	}
}

// DetectorSection holds one detector's memory-split ratios and
// dimension overrides, spec.md §6. Ratios are fractions of mem_size;
// explicit dimensions (when non-zero) win over ratio-derived ones.
type DetectorSection struct {
	K             int     `json:"k"`
	KK            int     `json:"kk"`
	NBits         int     `json:"nbits"`
	NumHash       int     `json:"num_hash"`
	GNBits        int     `json:"gnbits"`
	GNumHash      int     `json:"gnum_hash"`
	IFPDMapRatio  float64 `json:"ifpd_map_ratio"`
	CMSketchRatio float64 `json:"cm_sketch_ratio"`
	CMDepth       int     `json:"cm_depth"`
	D             int     `json:"d"`
	StageOneRatio float64 `json:"stage_one_ratio"`
	StageTwoRatio float64 `json:"stage_two_ratio"`
	D3            int     `json:"d3"`
	S1HashNum     int     `json:"s1_hash_num"`
	DelayThresUs  uint64  `json:"delay_thres"`
}

// JitterControlSection holds JitterControlExperiment.* keys.
type JitterControlSection struct {
	MaxBuffers      int    `json:"max_buffers"`
	BufferTimeoutUs uint64 `json:"buffer_timeout_us"`
	BSize           int    `json:"b_size"`
}

// Config is the full typed configuration, spec.md §6.
type Config struct {
	General           General              `json:"general"`
	FDFilter          DetectorSection      `json:"FDFilter"`
	DelaySketch       DetectorSection      `json:"DelaySketch"`
	JitterSketch      DetectorSection      `json:"JitterSketch"`
	JitterSketchS1Opt DetectorSection      `json:"JitterSketchS1Opt"`
	JitterControl     JitterControlSection `json:"JitterControlExperiment"`
	DJSketchOptimizer DetectorSection      `json:"DJSketchOptimizer"`
}

// Load reads path, standardizes it from JSONC to JSON via hujson, and
// unmarshals into a Config seeded with spec.md §6 defaults for any key
// the file omits.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}

	cfg := Config{General: DefaultGeneral()}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, nil
}

// DetectorConfig converts General into the detector package's parameter
// bundle.
func (c Config) DetectorConfig() detector.Config {
	return detector.Config{
		JitterFactor:           c.General.JitterFactor,
		MinAbsoluteJitterThres: c.General.MinAbsoluteJitterThres,
		MaxIFPDDiff:            c.General.MaxIFPDDiff,
		JitterDetectionMode:    c.General.JitterDetectionMode,
		FrequencyThreshold:     c.General.FrequencyThreshold,
	}
}

// JitterControlConfig converts the JitterControlExperiment section into
// the jittercontrol package's own Config shape.
func (c Config) JitterControlConfig() jittercontrol.Config {
	return jittercontrol.Config{
		MaxBuffers:      c.JitterControl.MaxBuffers,
		BufferTimeoutUs: c.JitterControl.BufferTimeoutUs,
		BSize:           c.JitterControl.BSize,
	}
}

// Per-bucket byte footprints used for dimension derivation, spec.md §6: "the effective per-array dimension
// is derived by dividing the allotted byte budget by the bucket size."
const (
	bloomBucketBytes = 1 // one bit per BitBf slice entry, rounded up at allocation
	cmBucketBytes    = 4 // uint32 counter
)

// deriveCount returns explicit when non-zero, else budgetBytes/bucketBytes
// clamped to at least 1.
func deriveCount(explicit int, budgetBytes float64, bucketBytes int) int {
	if explicit > 0 {
		return explicit
	}
	n := int(budgetBytes) / bucketBytes
	if n < 1 {
		n = 1
	}
	return n
}

// FDFilterParams derives detector.FDFilterParams from mem_size and the
// FDFilter section's ratios and explicit overrides.
func (c Config) FDFilterParams() detector.FDFilterParams {
	s := c.FDFilter
	mem := float64(c.General.MemSize)
	ifpdBudget := mem * nonZero(s.IFPDMapRatio, 0.1)
	cmBudget := mem * nonZero(s.CMSketchRatio, 0.2)

	delayThres := s.DelayThresUs
	if delayThres == 0 {
		delayThres = 2_000_000
	}

	return detector.FDFilterParams{
		K:             intOr(s.K, 3),
		KK:            intOr(s.KK, 4),
		NBits:         intOr(s.NBits, 4096),
		NumHash:       intOr(s.NumHash, 3),
		GNBits:        intOr(s.GNBits, 8192),
		GNumHash:      intOr(s.GNumHash, 3),
		CMDepth:       intOr(s.CMDepth, 3),
		CMWidth:       deriveCount(0, cmBudget, cmBucketBytes),
		IFPDTableSize: deriveCount(0, ifpdBudget, 24),
		DelayThres:    delayThres,
	}
}

// DelaySketchParams derives detector.DelaySketchParams from mem_size and
// the DelaySketch section.
func (c Config) DelaySketchParams() detector.DelaySketchParams {
	s := c.DelaySketch
	mem := float64(c.General.MemSize)
	ifpdBudget := mem * nonZero(s.IFPDMapRatio, 0.1)
	cmBudget := mem * nonZero(s.CMSketchRatio, 0.2)

	return detector.DelaySketchParams{
		D:             intOr(s.D, 4),
		W:             intOr(s.NBits, 512),
		CMDepth:       intOr(s.CMDepth, 3),
		CMWidth:       deriveCount(0, cmBudget, cmBucketBytes),
		IFPDTableSize: deriveCount(0, ifpdBudget, 24),
	}
}

// JitterSketchParams derives detector.JitterSketchParams from mem_size
// and the JitterSketch section's stage ratios.
func (c Config) JitterSketchParams() detector.JitterSketchParams {
	s := c.JitterSketch
	mem := float64(c.General.MemSize)
	w1Budget := mem * nonZero(s.StageOneRatio, 0.6)
	w2Budget := mem * nonZero(s.StageTwoRatio, 0.3)

	return detector.JitterSketchParams{
		W1: deriveCount(0, w1Budget, 6),
		W2: deriveCount(0, w2Budget, 24),
		W3: intOr(s.NBits, 64),
		D3: intOr(s.D3, 4),
	}
}

// JitterSketchS1OptParams derives detector.JitterSketchS1OptParams from
// mem_size and the JitterSketchS1Opt section.
func (c Config) JitterSketchS1OptParams() detector.JitterSketchS1OptParams {
	s := c.JitterSketchS1Opt
	mem := float64(c.General.MemSize)
	w1Budget := mem * nonZero(s.StageOneRatio, 0.6)
	w2Budget := mem * nonZero(s.StageTwoRatio, 0.3)

	return detector.JitterSketchS1OptParams{
		W1:        deriveCount(0, w1Budget, 6),
		W2:        deriveCount(0, w2Budget, 16),
		W3:        intOr(s.NBits, 64),
		D3:        intOr(s.D3, 4),
		S1HashNum: intOr(s.S1HashNum, 2),
	}
}

// DJSketchOptimizerParams derives the embedded JitterSketch's parameters
// for the DJSketchOptimizer section, distinct from JitterSketch's own
// mem_size budget per spec.md §6.
func (c Config) DJSketchOptimizerParams() optimizer.JitterSketchOptimizerParams {
	s := c.DJSketchOptimizer
	mem := float64(c.General.MemSize)
	w1Budget := mem * nonZero(s.StageOneRatio, 0.6)
	w2Budget := mem * nonZero(s.StageTwoRatio, 0.3)

	return optimizer.JitterSketchOptimizerParams{
		W1: deriveCount(0, w1Budget, 6),
		W2: deriveCount(0, w2Budget, 24),
		W3: intOr(s.NBits, 64),
		D3: intOr(s.D3, 4),
	}
}

func intOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func nonZero(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
