// Package engine orchestrates the scoring of sung attempts.
//
// An [Engine] is the caller-facing entry point of the module: for each
// attempt it resolves the start offset (via the configured
// [offset.Estimator] when the attempt does not carry one), runs the feedback
// builder for word-level detail and the performance scorer for the headline
// metrics, and returns both as one [Outcome].
//
// Batch scoring fans out over attempts with a bounded errgroup. The engine
// also owns the alignment-size guard: oversized token lists are rejected
// before the quadratic aligner runs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cantora-app/cantora/internal/config"
	"github.com/cantora-app/cantora/internal/feedback"
	"github.com/cantora-app/cantora/internal/observe"
	"github.com/cantora-app/cantora/internal/score"
	"github.com/cantora-app/cantora/pkg/offset"
	"github.com/cantora-app/cantora/pkg/types"
)

// ErrAttemptTooLarge is returned when an attempt's token lists exceed the
// configured alignment-size bound. Wrap-checked by callers via [errors.Is].
var ErrAttemptTooLarge = errors.New("attempt exceeds alignment size limit")

// Attempt is one recorded take of one verse, with every signal the scoring
// core consumes. Pitch contours and energy envelopes are optional; missing
// signals degrade per the scorer's defaults.
type Attempt struct {
	// AttemptID is an opaque caller-supplied identifier echoed into the
	// outcome and logs. Optional.
	AttemptID string `json:"attempt_id,omitempty"`

	// Mode selects the practice-mode weighting profile. Empty means the
	// configured default mode.
	Mode score.Mode `json:"mode,omitempty"`

	ReferenceWords []types.WordToken `json:"reference_words"`
	UserWords      []types.WordToken `json:"user_words"`
	ReferenceLines []types.Line      `json:"reference_lines,omitempty"`

	VerseStartSec float64 `json:"verse_start_sec"`
	VerseEndSec   float64 `json:"verse_end_sec"`

	ReferencePitch types.PitchContour `json:"reference_pitch,omitempty"`
	RecordingPitch types.PitchContour `json:"recording_pitch,omitempty"`

	ReferenceEnergy types.Envelope `json:"reference_energy,omitempty"`
	RecordingEnergy types.Envelope `json:"recording_energy,omitempty"`

	ReferenceDurationSec float64 `json:"reference_duration_sec"`
	RecordingDurationSec float64 `json:"recording_duration_sec"`

	// OffsetMs is a pre-computed start offset in milliseconds. When nil,
	// the engine's estimator runs; when the engine has no estimator
	// either, the offset is zero.
	OffsetMs *float64 `json:"offset_ms,omitempty"`
}

// Outcome combines the detailed word-level feedback with the headline
// performance score for one attempt.
type Outcome struct {
	AttemptID string `json:"attempt_id,omitempty"`

	// Mode is the weighting profile actually applied, after the configured
	// default filled in an empty attempt mode.
	Mode score.Mode `json:"mode"`

	Feedback    feedback.Report `json:"feedback"`
	Performance score.Result    `json:"performance"`

	// OffsetMs is the start offset actually applied, and OffsetMethod the
	// routine that produced it ("caller" for pre-computed offsets, "none"
	// when no estimate was available).
	OffsetMs     float64 `json:"offset_ms"`
	OffsetMethod string  `json:"offset_method"`
}

// Engine scores attempts. Safe for concurrent use.
type Engine struct {
	cfg       config.Config
	builder   *feedback.Builder
	estimator offset.Estimator
	metrics   *observe.Metrics
}

// Option configures an [Engine].
type Option func(*Engine)

// WithEstimator sets the start-offset estimator consulted for attempts that
// do not carry a pre-computed offset.
func WithEstimator(est offset.Estimator) Option {
	return func(e *Engine) { e.estimator = est }
}

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine from cfg. cfg is expected to be validated.
func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		builder: feedback.NewBuilder(cfg.BuilderConfig()),
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Score scores a single attempt: offset resolution, word feedback,
// performance analysis.
//
// Returns [ErrAttemptTooLarge] (wrapped) when len(reference)*len(user)
// exceeds the configured cell bound; the aligner is quadratic in that
// product, so the guard runs first.
func (e *Engine) Score(ctx context.Context, att Attempt) (*Outcome, error) {
	ctx, span := observe.StartSpan(ctx, "engine.Score")
	defer span.End()
	log := observe.Logger(ctx)
	start := time.Now()

	cells := len(att.ReferenceWords) * len(att.UserWords)
	if limit := e.cfg.Engine.MaxAlignmentCells; limit > 0 && cells > limit {
		e.metrics.RejectedAttempts.Add(ctx, 1,
			metric.WithAttributes(observe.Attr("reason", "alignment_too_large")))
		return nil, fmt.Errorf("attempt %q: %d alignment cells over limit %d: %w",
			att.AttemptID, cells, limit, ErrAttemptTooLarge)
	}

	mode := att.Mode
	if mode == "" {
		mode = e.cfg.Engine.DefaultMode
	}
	if !mode.IsValid() {
		e.metrics.RejectedAttempts.Add(ctx, 1,
			metric.WithAttributes(observe.Attr("reason", "invalid_mode")))
		return nil, fmt.Errorf("attempt %q: invalid mode %q", att.AttemptID, mode)
	}

	offsetMs, method := e.resolveOffset(ctx, att)

	alignStart := time.Now()
	rep := e.builder.Build(feedback.Input{
		ReferenceWords:    att.ReferenceWords,
		UserWords:         att.UserWords,
		ReferenceLines:    att.ReferenceLines,
		VerseStartSec:     att.VerseStartSec,
		VerseEndSec:       att.VerseEndSec,
		EstimatedOffsetMs: offsetMs,
	})
	e.metrics.AlignDuration.Record(ctx, time.Since(alignStart).Seconds())
	e.metrics.AlignedWords.Add(ctx, int64(len(att.ReferenceWords)))
	if rep.Message != "" {
		e.metrics.TruncatedTakes.Add(ctx, 1)
	}

	// No reference words means no alignment ran; the word term is then
	// absent from the blend rather than zero.
	var wordScore *float64
	if len(att.ReferenceWords) > 0 {
		ws := float64(rep.WordAccuracyPct)
		wordScore = &ws
	}

	res := score.Analyze(score.Input{
		ReferencePitch:       att.ReferencePitch,
		RecordingPitch:       att.RecordingPitch,
		ReferenceEnergy:      att.ReferenceEnergy,
		RecordingEnergy:      att.RecordingEnergy,
		ReferenceDurationSec: att.ReferenceDurationSec,
		RecordingDurationSec: att.RecordingDurationSec,
		EstimatedOffsetMs:    offsetMs,
		Mode:                 mode,
		Weights:              e.cfg.ScoreWeights(mode),
		WordScore:            wordScore,
	})
	if score.LowSignal(att.RecordingEnergy) {
		e.metrics.LowSignalTakes.Add(ctx, 1)
	}

	e.metrics.AttemptsScored.Add(ctx, 1,
		metric.WithAttributes(observe.Attr("mode", string(mode))))
	e.metrics.ScoreDuration.Record(ctx, time.Since(start).Seconds())

	log.Info("attempt scored",
		"attempt_id", att.AttemptID,
		"mode", string(mode),
		"overall", res.Overall,
		"word_accuracy_pct", rep.WordAccuracyPct,
		"offset_ms", offsetMs,
		"offset_method", method,
		"duration", time.Since(start))

	return &Outcome{
		AttemptID:    att.AttemptID,
		Mode:         mode,
		Feedback:     rep,
		Performance:  res,
		OffsetMs:     offsetMs,
		OffsetMethod: method,
	}, nil
}

// ScoreBatch scores attempts concurrently, bounded by the configured batch
// concurrency. Outcomes are returned in input order. The first error aborts
// the batch.
func (e *Engine) ScoreBatch(ctx context.Context, attempts []Attempt) ([]*Outcome, error) {
	if len(attempts) == 0 {
		return nil, nil
	}

	outs := make([]*Outcome, len(attempts))
	g, gctx := errgroup.WithContext(ctx)
	if n := e.cfg.Engine.BatchConcurrency; n > 0 {
		g.SetLimit(n)
	}

	for i, att := range attempts {
		i, att := i, att
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := e.Score(gctx, att)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

// resolveOffset picks the attempt's offset source: the caller-supplied value
// wins, then the estimator, then zero. Estimator failures degrade to zero
// with a warning rather than failing the attempt.
func (e *Engine) resolveOffset(ctx context.Context, att Attempt) (offsetMs float64, method string) {
	if att.OffsetMs != nil {
		return *att.OffsetMs, "caller"
	}
	if e.estimator == nil {
		return 0, "none"
	}

	est, err := e.estimator.EstimateOffset(ctx,
		att.ReferenceEnergy, att.RecordingEnergy,
		att.ReferenceDurationSec, att.RecordingDurationSec)
	if err != nil {
		observe.Logger(ctx).Warn("offset estimation failed, assuming zero lag",
			"attempt_id", att.AttemptID, "error", err)
		return 0, "none"
	}
	return est.LagMs, est.Method
}
