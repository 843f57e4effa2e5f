// Package config provides configuration management for distill.
// All knobs the engine consumes are data: patterns, weights, and limits.
// Invalid entries are dropped with a warning and defaults substituted;
// configuration problems are never fatal.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	// Limits reject oversized input before clustering starts.
	MaxInputBytes int `yaml:"max_input_bytes"`
	MaxEvents     int `yaml:"max_events"`

	// Timeout races the whole pipeline invocation.
	Timeout time.Duration `yaml:"timeout"`

	// BatchSize is the number of events processed per clustering batch.
	BatchSize int `yaml:"batch_size"`

	// Hierarchical selects the multi-pass LSH strategy over the flat
	// adaptive one.
	Hierarchical bool `yaml:"hierarchical"`

	// RecentWindow bounds how many recent clusters the flat strategy
	// scans for candidates. A deliberate precision/performance
	// trade-off: output is order-dependent.
	RecentWindow int `yaml:"recent_window"`

	// Seed makes MinHash signatures reproducible.
	Seed int64 `yaml:"seed"`

	// MinHashFuncs is the signature length k.
	MinHashFuncs int `yaml:"minhash_funcs"`

	LSH        LSHConfig        `yaml:"lsh"`
	Cache      CacheConfig      `yaml:"cache"`
	Segment    SegmentConfig    `yaml:"segment"`
	Score      ScoreConfig      `yaml:"score"`
	Thresholds ThresholdConfig  `yaml:"thresholds"`
	Categories []CategoryRule   `yaml:"categories"`
}

// LSHConfig sets the banding of the LSH index. Bands*Rows must equal
// MinHashFuncs; Normalize repairs a mismatch.
type LSHConfig struct {
	Bands int `yaml:"bands"`
	Rows  int `yaml:"rows"`
}

// CacheConfig bounds the three per-run memo caches.
type CacheConfig struct {
	TokenSize int `yaml:"token_size"`
	MatchSize int `yaml:"match_size"`
	ScoreSize int `yaml:"score_size"`
}

// SegmentConfig holds the segmenter's pattern sets. All patterns are
// regular expression sources, compiled by the segmenter.
type SegmentConfig struct {
	NoisePatterns    []string          `yaml:"noise_patterns"`
	PlaceholderRules []PlaceholderRule `yaml:"placeholder_rules"`

	// StackFoldMin is the minimum contiguous stack-frame run that is
	// folded into a single marker.
	StackFoldMin int `yaml:"stack_fold_min"`

	// MaxEventLines bounds a single event; an overlong event is cut and
	// a new one started.
	MaxEventLines int `yaml:"max_event_lines"`
}

// PlaceholderRule names a volatile-value pattern. Matches are replaced by
// <Name> in templates and the originals captured per placeholder.
type PlaceholderRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// CategoryRule assigns a category to events matching Pattern. The
// matching rule with the lowest Priority wins; unmatched events fall to
// "Other".
type CategoryRule struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Priority int    `yaml:"priority"`
}

// ScoreConfig weights per-line importance contributions.
type ScoreConfig struct {
	// StatusWeights keys on the status class: "2xx".."5xx".
	StatusWeights map[string]float64 `yaml:"status_weights"`

	// LatencyBuckets are evaluated highest threshold first.
	LatencyBuckets []LatencyBucket `yaml:"latency_buckets"`

	// MessagePatterns add weight to lines matching interesting shapes.
	MessagePatterns []MessageWeight `yaml:"message_patterns"`

	// SuccessPenalty is added (typically negative) for lines matching
	// SuccessPattern.
	SuccessPenalty float64 `yaml:"success_penalty"`
	SuccessPattern string  `yaml:"success_pattern"`

	// Diversity bonuses per distinct URL, number, and token in the event.
	URLBonus    float64 `yaml:"url_bonus"`
	NumberBonus float64 `yaml:"number_bonus"`
	TokenBonus  float64 `yaml:"token_bonus"`
}

// LatencyBucket maps a latency floor in milliseconds to a weight.
type LatencyBucket struct {
	MinMillis float64 `yaml:"min_millis"`
	Weight    float64 `yaml:"weight"`
}

// MessageWeight pairs a message pattern with its score contribution.
type MessageWeight struct {
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`
}

// ThresholdConfig holds the adaptive-threshold base values and the
// multipliers applied for dataset size and average signature length.
type ThresholdConfig struct {
	BaseEdit    float64 `yaml:"base_edit"`
	StrictRatio float64 `yaml:"strict_ratio"`
	BaseJaccard float64 `yaml:"base_jaccard"`

	// SmallDataset/LargeDataset bound the size regimes.
	SmallDataset int `yaml:"small_dataset"`
	LargeDataset int `yaml:"large_dataset"`

	// Multipliers: >1 loosens the edit thresholds, <1 tightens them.
	SmallSizeFactor float64 `yaml:"small_size_factor"`
	LargeSizeFactor float64 `yaml:"large_size_factor"`
	ShortLenFactor  float64 `yaml:"short_len_factor"`
	LongLenFactor   float64 `yaml:"long_len_factor"`

	// ShortSignature/LongSignature bound the average-length regimes.
	ShortSignature float64 `yaml:"short_signature"`
	LongSignature  float64 `yaml:"long_signature"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxInputBytes: 8 << 20,
		MaxEvents:     50000,
		Timeout:       30 * time.Second,
		BatchSize:     50,
		RecentWindow:  200,
		Seed:          1,
		MinHashFuncs:  128,
		LSH:           LSHConfig{Bands: 32, Rows: 4},
		Cache: CacheConfig{
			TokenSize: 4096,
			MatchSize: 8192,
			ScoreSize: 4096,
		},
		Segment: SegmentConfig{
			NoisePatterns: []string{
				`^[-=_*#]{4,}\s*$`,
				`^\s*\.{3,}\s*$`,
				`^\s*\d{1,3}%\s*(?:\[[=\->#\s]*\])?\s*$`,
				`(?i)^\s*loading\s*\.*\s*$`,
			},
			PlaceholderRules: []PlaceholderRule{
				{Name: "TIMESTAMP", Pattern: `\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`},
				{Name: "UUID", Pattern: `\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`},
				{Name: "IP", Pattern: `\b(?:\d{1,3}\.){3}\d{1,3}(?::\d{1,5})?\b`},
				{Name: "HEX", Pattern: `\b0x[0-9a-fA-F]+\b|\b[0-9a-fA-F]{12,}\b`},
				{Name: "SESSION", Pattern: `(?i)\b(?:session|user|request|trace)[_-]?id[=:]\s*[\w-]+`},
			},
			StackFoldMin:  4,
			MaxEventLines: 120,
		},
		Score: ScoreConfig{
			StatusWeights: map[string]float64{
				"5xx": 10, "4xx": 6, "3xx": 1, "2xx": -1,
			},
			LatencyBuckets: []LatencyBucket{
				{MinMillis: 1000, Weight: 5},
				{MinMillis: 500, Weight: 3},
				{MinMillis: 100, Weight: 1},
			},
			MessagePatterns: []MessageWeight{
				{Pattern: `(?i)\bpanic\b`, Weight: 10},
				{Pattern: `(?i)\b(?:error|exception|fatal)\b`, Weight: 8},
				{Pattern: `(?i)\b(?:timeout|timed out|refused|unreachable)\b`, Weight: 7},
				{Pattern: `(?i)\bfail(?:ed|ure)?\b`, Weight: 6},
				{Pattern: `(?i)\bretry(?:ing)?\b`, Weight: 3},
				{Pattern: `(?i)\bwarn(?:ing)?\b`, Weight: 2},
			},
			SuccessPenalty: -2,
			SuccessPattern: `(?i)\b(?:success(?:ful(?:ly)?)?|completed|200 OK)\b`,
			URLBonus:       0.5,
			NumberBonus:    0.1,
			TokenBonus:     0.05,
		},
		Thresholds: ThresholdConfig{
			BaseEdit:        0.45,
			StrictRatio:     0.6,
			BaseJaccard:     0.5,
			SmallDataset:    100,
			LargeDataset:    2000,
			SmallSizeFactor: 1.2,
			LargeSizeFactor: 0.8,
			ShortLenFactor:  1.15,
			LongLenFactor:   0.9,
			ShortSignature:  40,
			LongSignature:   120,
		},
		Categories: []CategoryRule{
			{Name: "Error", Priority: 1, Pattern: `(?i)\b(?:error|exception|fatal|panic|fail(?:ed|ure)?)\b`},
			{Name: "Warning", Priority: 2, Pattern: `(?i)\b(?:warn(?:ing)?|deprecat)`},
			{Name: "Network", Priority: 3, Pattern: `(?i)\b(?:https?|request|response|connect(?:ion)?|socket|dns|tcp|refused)\b`},
			{Name: "Database", Priority: 4, Pattern: `(?i)\b(?:sql|query|database|postgres|sqlite|transaction|rollback)\b`},
			{Name: "Performance", Priority: 5, Pattern: `(?i)\b(?:latency|slow|duration|took|elapsed)\b`},
			{Name: "Lifecycle", Priority: 6, Pattern: `(?i)\b(?:start(?:ed|ing)?|stop(?:ped|ping)?|shut(?:ting)?\s?down|listening|initializ)`},
		},
	}
}

// Load reads a YAML config file and applies environment overrides on top
// of the defaults. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				applyEnv(cfg)
				return cfg, nil
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	cfg.Normalize()
	return cfg, nil
}

// applyEnv overrides a handful of operational knobs from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DISTILL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("DISTILL_MAX_INPUT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxInputBytes = n
		}
	}
	if v := os.Getenv("DISTILL_MAX_EVENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxEvents = n
		}
	}
	if v := os.Getenv("DISTILL_HIERARCHICAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Hierarchical = b
		}
	}
}

// Normalize repairs values that would break the engine: non-positive
// limits fall back to defaults and the LSH banding is made to cover the
// signature length exactly.
func (c *Config) Normalize() {
	def := Default()
	if c.MaxInputBytes <= 0 {
		c.MaxInputBytes = def.MaxInputBytes
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = def.MaxEvents
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = def.RecentWindow
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MinHashFuncs <= 0 {
		c.MinHashFuncs = def.MinHashFuncs
	}
	if c.LSH.Bands <= 0 || c.LSH.Rows <= 0 || c.LSH.Bands*c.LSH.Rows != c.MinHashFuncs {
		c.LSH = bandingFor(c.MinHashFuncs)
	}
	if c.Segment.StackFoldMin <= 1 {
		c.Segment.StackFoldMin = def.Segment.StackFoldMin
	}
	if c.Segment.MaxEventLines <= 0 {
		c.Segment.MaxEventLines = def.Segment.MaxEventLines
	}
}

// bandingFor picks the widest banding with at least 4 rows that divides
// the signature length, falling back to k bands of 1 row.
func bandingFor(k int) LSHConfig {
	for rows := 4; rows <= k; rows++ {
		if k%rows == 0 {
			return LSHConfig{Bands: k / rows, Rows: rows}
		}
	}
	return LSHConfig{Bands: k, Rows: 1}
}
