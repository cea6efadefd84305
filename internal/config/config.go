// Package config provides the configuration schema and loader for the
// Cantora scoring engine.
package config

import (
	"github.com/cantora-app/cantora/internal/feedback"
	"github.com/cantora-app/cantora/internal/score"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Cantora.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Alignment AlignmentConfig `yaml:"alignment"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Scoring   ScoringConfig   `yaml:"scoring"`
}

// EngineConfig holds runtime settings for the scoring engine.
type EngineConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// DefaultMode is the practice mode applied when an attempt does not
	// name one. Must be one of: full, words, timing, pitch.
	DefaultMode score.Mode `yaml:"default_mode"`

	// MaxAlignmentCells bounds n*m (reference words x user words) before an
	// attempt is rejected, protecting against adversarial transcript
	// lengths. 0 means the default of 250000.
	MaxAlignmentCells int `yaml:"max_alignment_cells"`

	// BatchConcurrency bounds parallel attempts in batch scoring.
	// 0 means the default of 4.
	BatchConcurrency int `yaml:"batch_concurrency"`
}

// AlignmentConfig tunes the word aligner.
type AlignmentConfig struct {
	// EarlyLateThresholdMs is the timing slack before a correctly-sung word
	// is flagged early or late.
	EarlyLateThresholdMs float64 `yaml:"early_late_threshold_ms"`

	// PhoneticThreshold is the minimum consonant-skeleton similarity for
	// the reduced substitution cost during alignment.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
}

// FeedbackConfig tunes segmentation and coaching. See the feedback package
// for the semantics of each knob.
type FeedbackConfig struct {
	CoverageThreshold     float64 `yaml:"coverage_threshold"`
	TruncatePadSec        float64 `yaml:"truncate_pad_sec"`
	MaxWordsPerSegment    int     `yaml:"max_words_per_segment"`
	PauseGapSec           float64 `yaml:"pause_gap_sec"`
	MinSegmentSec         float64 `yaml:"min_segment_sec"`
	SoftenBelowConfidence float64 `yaml:"soften_below_confidence"`
	AccuracyTipBelowPct   int     `yaml:"accuracy_tip_below_pct"`
	TimingTipAboveMs      float64 `yaml:"timing_tip_above_ms"`
	OffsetNoteAboveMs     float64 `yaml:"offset_note_above_ms"`
	RushRatio             float64 `yaml:"rush_ratio"`
	DragRatio             float64 `yaml:"drag_ratio"`
	DrillSegmentBelowPct  int     `yaml:"drill_segment_below_pct"`
	DrillRepeatCount      int     `yaml:"drill_repeat_count"`
}

// ScoringConfig tunes the performance scorer.
type ScoringConfig struct {
	// Weights overrides the standard per-mode blend profiles. Omitted
	// modes keep their standard weights. Each profile is re-normalized
	// before blending, so values need not sum to 1.
	Weights map[score.Mode]WeightsConfig `yaml:"weights"`
}

// WeightsConfig is one mode's blend profile.
type WeightsConfig struct {
	Pitch     float64 `yaml:"pitch"`
	Timing    float64 `yaml:"timing"`
	Stability float64 `yaml:"stability"`
	Words     float64 `yaml:"words"`
}

// ScoreWeights returns the configured weight override for mode, or nil when
// the mode keeps its standard profile.
func (c *Config) ScoreWeights(mode score.Mode) *score.Weights {
	w, ok := c.Scoring.Weights[mode]
	if !ok {
		return nil
	}
	return &score.Weights{
		Pitch:     w.Pitch,
		Timing:    w.Timing,
		Stability: w.Stability,
		Words:     w.Words,
	}
}

// Default returns the configuration used when no file overrides anything.
func Default() *Config {
	fb := feedback.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			LogLevel:          LogInfo,
			DefaultMode:       score.ModeFull,
			MaxAlignmentCells: 250000,
			BatchConcurrency:  4,
		},
		Alignment: AlignmentConfig{
			EarlyLateThresholdMs: fb.EarlyLateThresholdMs,
			PhoneticThreshold:    0.70,
		},
		Feedback: FeedbackConfig{
			CoverageThreshold:     fb.CoverageThreshold,
			TruncatePadSec:        fb.TruncatePadSec,
			MaxWordsPerSegment:    fb.MaxWordsPerSegment,
			PauseGapSec:           fb.PauseGapSec,
			MinSegmentSec:         fb.MinSegmentSec,
			SoftenBelowConfidence: fb.SoftenBelowConfidence,
			AccuracyTipBelowPct:   fb.AccuracyTipBelowPct,
			TimingTipAboveMs:      fb.TimingTipAboveMs,
			OffsetNoteAboveMs:     fb.OffsetNoteAboveMs,
			RushRatio:             fb.RushRatio,
			DragRatio:             fb.DragRatio,
			DrillSegmentBelowPct:  fb.DrillSegmentBelowPct,
			DrillRepeatCount:      fb.DrillRepeatCount,
		},
	}
}

// BuilderConfig converts the feedback section into the builder's config,
// carrying the aligner threshold along.
func (c *Config) BuilderConfig() feedback.Config {
	return feedback.Config{
		CoverageThreshold:     c.Feedback.CoverageThreshold,
		TruncatePadSec:        c.Feedback.TruncatePadSec,
		MaxWordsPerSegment:    c.Feedback.MaxWordsPerSegment,
		PauseGapSec:           c.Feedback.PauseGapSec,
		MinSegmentSec:         c.Feedback.MinSegmentSec,
		SoftenBelowConfidence: c.Feedback.SoftenBelowConfidence,
		EarlyLateThresholdMs:  c.Alignment.EarlyLateThresholdMs,
		PhoneticThreshold:     c.Alignment.PhoneticThreshold,
		AccuracyTipBelowPct:   c.Feedback.AccuracyTipBelowPct,
		TimingTipAboveMs:      c.Feedback.TimingTipAboveMs,
		OffsetNoteAboveMs:     c.Feedback.OffsetNoteAboveMs,
		RushRatio:             c.Feedback.RushRatio,
		DragRatio:             c.Feedback.DragRatio,
		DrillSegmentBelowPct:  c.Feedback.DrillSegmentBelowPct,
		DrillRepeatCount:      c.Feedback.DrillRepeatCount,
	}
}
