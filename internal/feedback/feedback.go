// Package feedback turns one aligned attempt into localized, actionable
// coaching: per-segment scores, prioritized issue notes, coaching tips, and
// a single recommended drill.
//
// The builder proceeds in four stages:
//
//  1. Coverage guard: when the recording stops well before the verse ends,
//     the reference transcript is truncated so unrecorded lyrics are not
//     penalized as missed.
//  2. Segmentation: the reference timeline is partitioned into lyric lines
//     when line boundaries are known, or into pause/length-bounded chunks
//     otherwise. Short segments merge backward into their predecessor so no
//     statistically-unstable single-word segments survive.
//  3. Scoring: each segment (and the report as a whole) gets a weighted word
//     accuracy where very-low-confidence incorrect verdicts count half — a
//     verdict the transcriber itself barely believes is more likely noise
//     than a true error.
//  4. Coaching: every applicable tip is appended; exactly one drill is
//     selected by fixed priority.
//
// The builder is stateless and safe for concurrent use.
package feedback

import (
	"math"

	"github.com/cantora-app/cantora/internal/align"
	"github.com/cantora-app/cantora/pkg/types"
)

// Config tunes the builder. Use [DefaultConfig] and override fields as
// needed; zero values are not interpreted as defaults.
type Config struct {
	// CoverageThreshold is the attempted fraction of the verse below which
	// the reference set is truncated to what was actually recorded.
	CoverageThreshold float64

	// TruncatePadSec extends the truncation cutoff past the last user word.
	TruncatePadSec float64

	// MaxWordsPerSegment bounds pause-based segments.
	MaxWordsPerSegment int

	// PauseGapSec forces a segment break when the gap to the next reference
	// word exceeds it.
	PauseGapSec float64

	// MinSegmentSec is the duration below which a segment merges backward
	// into its predecessor.
	MinSegmentSec float64

	// SoftenBelowConfidence is the incorrect-verdict confidence below which
	// the word counts half instead of zero.
	SoftenBelowConfidence float64

	// EarlyLateThresholdMs and PhoneticThreshold are handed through to the
	// aligner.
	EarlyLateThresholdMs float64
	PhoneticThreshold    float64

	// AccuracyTipBelowPct, TimingTipAboveMs, OffsetNoteAboveMs, RushRatio
	// and DragRatio gate the coaching tips.
	AccuracyTipBelowPct int
	TimingTipAboveMs    float64
	OffsetNoteAboveMs   float64
	RushRatio           float64
	DragRatio           float64

	// DrillSegmentBelowPct selects the repeat-segment drill when the worst
	// segment scores under it. DrillRepeatCount is how often to repeat.
	DrillSegmentBelowPct int
	DrillRepeatCount     int
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		CoverageThreshold:     0.6,
		TruncatePadSec:        0.5,
		MaxWordsPerSegment:    10,
		PauseGapSec:           0.9,
		MinSegmentSec:         0.6,
		SoftenBelowConfidence: 0.45,
		EarlyLateThresholdMs:  200,
		PhoneticThreshold:     0.70,
		AccuracyTipBelowPct:   75,
		TimingTipAboveMs:      250,
		OffsetNoteAboveMs:     40,
		RushRatio:             1.12,
		DragRatio:             0.88,
		DrillSegmentBelowPct:  70,
		DrillRepeatCount:      3,
	}
}

// Input carries everything one Build call needs. Reference timestamps are on
// the song timeline; user timestamps are relative to the recording start,
// which coincides with the verse start up to the estimated offset.
type Input struct {
	ReferenceWords []types.WordToken
	UserWords      []types.WordToken

	// ReferenceLines supplies lyric line boundaries. When empty, segments
	// are derived from pauses and length instead.
	ReferenceLines []types.Line

	VerseStartSec float64
	VerseEndSec   float64

	// EstimatedOffsetMs is the signed lag between reference and recording
	// from the offset-estimation collaborator.
	EstimatedOffsetMs float64
}

// Segment is the scored feedback for one contiguous span of the reference
// timeline. Segments partition the timeline without overlap.
type Segment struct {
	SegmentIndex    int      `json:"segment_index"`
	Text            string   `json:"text"`
	Start           float64  `json:"start"`
	End             float64  `json:"end"`
	WordAccuracyPct int      `json:"word_accuracy_pct"`
	TimingMeanAbsMs float64  `json:"timing_mean_abs_ms"`
	MainIssues      []string `json:"main_issues"`
}

// Substitution is one "you sang X instead of Y" pair for UI display.
type Substitution struct {
	RefWord    string  `json:"ref_word"`
	UserWord   string  `json:"user_word"`
	Confidence float64 `json:"confidence"`
}

// Subscores are the three display subscores derived from the report-level
// metrics, each clamped to [0, 100].
type Subscores struct {
	WordAccuracy int `json:"word_accuracy"`
	Timing       int `json:"timing"`
	Pace         int `json:"pace"`
}

// Report is the full detailed feedback for one attempt.
type Report struct {
	Words  []align.WordResult `json:"words"`
	Extras []types.WordToken  `json:"extras,omitempty"`

	Segments []Segment `json:"segments"`

	WordAccuracyPct int       `json:"word_accuracy_pct"`
	TimingMeanAbsMs float64   `json:"timing_mean_abs_ms"`
	PaceRatio       float64   `json:"pace_ratio"`
	Subscores       Subscores `json:"subscores"`

	Tips  []string `json:"tips"`
	Drill Drill    `json:"drill"`

	Substitutions   []Substitution `json:"substitutions,omitempty"`
	ConfidenceLabel align.Label    `json:"confidence_label"`

	// Message warns about an incomplete take; empty when the verse was
	// fully attempted.
	Message string `json:"message,omitempty"`

	// Warnings carry advisory notes, e.g. low transcription confidence.
	Warnings []string `json:"warnings,omitempty"`
}

// Builder assembles detailed feedback reports. Safe for concurrent use.
type Builder struct {
	cfg Config
}

// NewBuilder returns a Builder with the given config.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Build aligns the attempt and derives the full feedback report. It never
// fails: empty inputs degrade to an empty (but well-formed) report.
func (b *Builder) Build(in Input) Report {
	refWords := in.ReferenceWords
	refLines := in.ReferenceLines

	var rep Report

	// Coverage guard: a take that stops well before the verse ends must not
	// be penalized for the lyrics it never attempted.
	verseDuration := in.VerseEndSec - in.VerseStartSec
	lastUserEnd := 0.0
	for _, w := range in.UserWords {
		if w.End > lastUserEnd {
			lastUserEnd = w.End
		}
	}
	if len(in.UserWords) > 0 && verseDuration > 0 {
		coverage := lastUserEnd / verseDuration
		if coverage < b.cfg.CoverageThreshold {
			cutoff := in.VerseStartSec + lastUserEnd + b.cfg.TruncatePadSec
			refWords = truncateWords(refWords, cutoff)
			refLines = truncateLines(refLines, cutoff)
			rep.Message = incompleteTakeMessage(coverage)
		}
	}

	res := align.Align(refWords, in.UserWords, align.Options{
		ReferenceOffsetSec:   in.VerseStartSec,
		UserOffsetSec:        in.EstimatedOffsetMs / 1000,
		EarlyLateThresholdMs: b.cfg.EarlyLateThresholdMs,
		PhoneticThreshold:    b.cfg.PhoneticThreshold,
		ReferenceDurationSec: wordSpan(refWords),
		UserDurationSec:      wordSpan(in.UserWords),
	})
	rep.Words = res.Words
	rep.Extras = res.Extras
	rep.PaceRatio = res.Metrics.PaceRatio
	rep.ConfidenceLabel = res.ConfidenceLabel

	// Report-level weighted accuracy and timing over the full (possibly
	// truncated) word set.
	rep.WordAccuracyPct, rep.TimingMeanAbsMs = b.scoreWords(res.Words)

	segs := b.segment(refWords, refLines)
	rep.Segments = b.scoreSegments(segs, res.Words)

	rep.Tips = b.tips(rep, res, in.EstimatedOffsetMs)
	rep.Drill = b.selectDrill(rep)
	rep.Subscores = b.subscores(rep)

	for _, w := range res.Words {
		if w.Status == align.StatusIncorrect && w.User != nil {
			rep.Substitutions = append(rep.Substitutions, Substitution{
				RefWord:    w.RefWord,
				UserWord:   w.User.Word,
				Confidence: w.Confidence,
			})
		}
	}

	if rep.ConfidenceLabel == align.LabelLow && len(res.Words) > 0 {
		rep.Warnings = append(rep.Warnings,
			"Transcription confidence was low for this take; word-level penalties were softened.")
	}

	return rep
}

// scoreWords computes the weighted accuracy percentage and the mean absolute
// timing over correct words. Incorrect verdicts below the softening
// threshold count half — treating a verdict the transcriber barely believes
// as a full error would over-penalize noisy takes.
func (b *Builder) scoreWords(words []align.WordResult) (accuracyPct int, timingMeanAbsMs float64) {
	if len(words) == 0 {
		return 0, 0
	}
	weighted := 0.0
	correct := 0
	timingSum := 0.0
	for _, w := range words {
		switch {
		case w.Status.IsCorrect():
			weighted++
			correct++
			timingSum += math.Abs(float64(w.DeltaMs))
		case w.Status == align.StatusIncorrect && w.Confidence < b.cfg.SoftenBelowConfidence:
			weighted += 0.5
		}
	}
	accuracyPct = int(math.Round(100 * weighted / float64(len(words))))
	if correct > 0 {
		timingMeanAbsMs = timingSum / float64(correct)
	}
	return accuracyPct, timingMeanAbsMs
}

func (b *Builder) subscores(rep Report) Subscores {
	return Subscores{
		WordAccuracy: clampScore(rep.WordAccuracyPct),
		Timing:       clampScore(int(math.Round(100 - rep.TimingMeanAbsMs/5))),
		Pace:         clampScore(int(math.Round(100 - math.Abs(1-rep.PaceRatio)*200))),
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// wordSpan returns the duration from the first word's start to the last
// word's end, or 0 for an empty sequence.
func wordSpan(words []types.WordToken) float64 {
	if len(words) == 0 {
		return 0
	}
	first := words[0].Start
	last := words[0].End
	for _, w := range words {
		if w.Start < first {
			first = w.Start
		}
		if w.End > last {
			last = w.End
		}
	}
	return last - first
}

func truncateWords(words []types.WordToken, cutoff float64) []types.WordToken {
	out := make([]types.WordToken, 0, len(words))
	for _, w := range words {
		if w.Start < cutoff {
			out = append(out, w)
		}
	}
	return out
}

func truncateLines(lines []types.Line, cutoff float64) []types.Line {
	out := make([]types.Line, 0, len(lines))
	for _, l := range lines {
		if l.Start < cutoff {
			out = append(out, l)
		}
	}
	return out
}
