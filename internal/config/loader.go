package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied for absent fields. It is a convenience
// wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults, and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores defaults for fields an override file zeroed out or
// never set. Ratio thresholds keep whatever positive value was supplied.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Engine.LogLevel == "" {
		cfg.Engine.LogLevel = def.Engine.LogLevel
	}
	if cfg.Engine.DefaultMode == "" {
		cfg.Engine.DefaultMode = def.Engine.DefaultMode
	}
	if cfg.Engine.MaxAlignmentCells == 0 {
		cfg.Engine.MaxAlignmentCells = def.Engine.MaxAlignmentCells
	}
	if cfg.Engine.BatchConcurrency == 0 {
		cfg.Engine.BatchConcurrency = def.Engine.BatchConcurrency
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Engine.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("engine.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Engine.LogLevel))
	}
	if !cfg.Engine.DefaultMode.IsValid() {
		errs = append(errs, fmt.Errorf("engine.default_mode %q is invalid; valid values: full, words, timing, pitch", cfg.Engine.DefaultMode))
	}
	if cfg.Engine.MaxAlignmentCells < 0 {
		errs = append(errs, fmt.Errorf("engine.max_alignment_cells %d must not be negative", cfg.Engine.MaxAlignmentCells))
	}
	if cfg.Engine.BatchConcurrency < 0 {
		errs = append(errs, fmt.Errorf("engine.batch_concurrency %d must not be negative", cfg.Engine.BatchConcurrency))
	}

	if cfg.Alignment.EarlyLateThresholdMs < 0 {
		errs = append(errs, fmt.Errorf("alignment.early_late_threshold_ms %.0f must not be negative", cfg.Alignment.EarlyLateThresholdMs))
	}
	if cfg.Alignment.PhoneticThreshold < 0 || cfg.Alignment.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("alignment.phonetic_threshold %.2f is out of range [0, 1]", cfg.Alignment.PhoneticThreshold))
	}

	if cfg.Feedback.CoverageThreshold < 0 || cfg.Feedback.CoverageThreshold > 1 {
		errs = append(errs, fmt.Errorf("feedback.coverage_threshold %.2f is out of range [0, 1]", cfg.Feedback.CoverageThreshold))
	}
	if cfg.Feedback.SoftenBelowConfidence < 0 || cfg.Feedback.SoftenBelowConfidence > 1 {
		errs = append(errs, fmt.Errorf("feedback.soften_below_confidence %.2f is out of range [0, 1]", cfg.Feedback.SoftenBelowConfidence))
	}
	if cfg.Feedback.MaxWordsPerSegment < 1 {
		errs = append(errs, fmt.Errorf("feedback.max_words_per_segment %d must be at least 1", cfg.Feedback.MaxWordsPerSegment))
	}
	if cfg.Feedback.RushRatio <= cfg.Feedback.DragRatio {
		errs = append(errs, fmt.Errorf("feedback.rush_ratio %.2f must exceed feedback.drag_ratio %.2f", cfg.Feedback.RushRatio, cfg.Feedback.DragRatio))
	}
	if cfg.Feedback.DrillRepeatCount < 1 {
		errs = append(errs, fmt.Errorf("feedback.drill_repeat_count %d must be at least 1", cfg.Feedback.DrillRepeatCount))
	}

	for mode, w := range cfg.Scoring.Weights {
		if !mode.IsValid() {
			errs = append(errs, fmt.Errorf("scoring.weights: unknown mode %q; valid values: full, words, timing, pitch", mode))
			continue
		}
		if w.Pitch < 0 || w.Timing < 0 || w.Stability < 0 || w.Words < 0 {
			errs = append(errs, fmt.Errorf("scoring.weights.%s: weights must not be negative", mode))
		}
		if w.Pitch+w.Timing+w.Stability+w.Words <= 0 {
			errs = append(errs, fmt.Errorf("scoring.weights.%s: at least one weight must be positive", mode))
		}
	}

	return errors.Join(errs...)
}
