package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cantora-app/cantora/internal/config"
	"github.com/cantora-app/cantora/internal/engine"
	"github.com/cantora-app/cantora/internal/score"
	"github.com/cantora-app/cantora/pkg/offset"
	offsetmock "github.com/cantora-app/cantora/pkg/offset/mock"
	"github.com/cantora-app/cantora/pkg/types"
)

// tokens builds a word list with 0.5 s starts and 0.4 s words.
func tokens(words ...string) []types.WordToken {
	out := make([]types.WordToken, len(words))
	for i, w := range words {
		start := float64(i) * 0.5
		out[i] = types.WordToken{
			Word:      w,
			Start:     start,
			End:       start + 0.4,
			Index:     i,
			LineIndex: types.NoLine,
		}
	}
	return out
}

func attempt(id string) engine.Attempt {
	ref := tokens("twinkle", "twinkle", "little", "star")
	return engine.Attempt{
		AttemptID:            id,
		ReferenceWords:       ref,
		UserWords:            tokens("twinkle", "twinkle", "little", "star"),
		VerseStartSec:        0,
		VerseEndSec:          ref[len(ref)-1].End,
		ReferenceDurationSec: 2,
		RecordingDurationSec: 2,
	}
}

func TestScorePerfectTake(t *testing.T) {
	t.Parallel()
	e := engine.New(*config.Default())

	out, err := e.Score(context.Background(), attempt("take-1"))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if out.AttemptID != "take-1" {
		t.Errorf("AttemptID = %q, want %q", out.AttemptID, "take-1")
	}
	if out.Feedback.WordAccuracyPct != 100 {
		t.Errorf("WordAccuracyPct = %d, want 100", out.Feedback.WordAccuracyPct)
	}
	if out.Performance.Words == nil || *out.Performance.Words != 100 {
		t.Errorf("Performance.Words = %v, want 100", out.Performance.Words)
	}
	if out.OffsetMethod != "none" {
		t.Errorf("OffsetMethod = %q, want %q", out.OffsetMethod, "none")
	}
}

func TestScoreUsesEstimator(t *testing.T) {
	t.Parallel()
	est := &offsetmock.Estimator{
		Result: offset.Estimate{LagMs: 250, Method: "envelope-xcorr", Confidence: 0.9},
	}
	e := engine.New(*config.Default(), engine.WithEstimator(est))

	out, err := e.Score(context.Background(), attempt("take-2"))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if out.OffsetMs != 250 {
		t.Errorf("OffsetMs = %v, want 250", out.OffsetMs)
	}
	if out.OffsetMethod != "envelope-xcorr" {
		t.Errorf("OffsetMethod = %q, want %q", out.OffsetMethod, "envelope-xcorr")
	}
	if len(est.Calls) != 1 {
		t.Errorf("estimator calls = %d, want 1", len(est.Calls))
	}
}

func TestScoreCallerOffsetWins(t *testing.T) {
	t.Parallel()
	est := &offsetmock.Estimator{Result: offset.Estimate{LagMs: 999}}
	e := engine.New(*config.Default(), engine.WithEstimator(est))

	att := attempt("take-3")
	ms := -120.0
	att.OffsetMs = &ms

	out, err := e.Score(context.Background(), att)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if out.OffsetMs != -120 {
		t.Errorf("OffsetMs = %v, want -120", out.OffsetMs)
	}
	if out.OffsetMethod != "caller" {
		t.Errorf("OffsetMethod = %q, want %q", out.OffsetMethod, "caller")
	}
	if len(est.Calls) != 0 {
		t.Errorf("estimator calls = %d, want 0", len(est.Calls))
	}
}

func TestScoreEstimatorFailureDegrades(t *testing.T) {
	t.Parallel()
	est := &offsetmock.Estimator{Err: errors.New("xcorr blew up")}
	e := engine.New(*config.Default(), engine.WithEstimator(est))

	out, err := e.Score(context.Background(), attempt("take-4"))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if out.OffsetMs != 0 {
		t.Errorf("OffsetMs = %v, want 0", out.OffsetMs)
	}
	if out.OffsetMethod != "none" {
		t.Errorf("OffsetMethod = %q, want %q", out.OffsetMethod, "none")
	}
}

func TestScoreRejectsOversizedAlignment(t *testing.T) {
	t.Parallel()
	cfg := *config.Default()
	cfg.Engine.MaxAlignmentCells = 4
	e := engine.New(cfg)

	_, err := e.Score(context.Background(), attempt("take-5")) // 4x4 = 16 cells
	if !errors.Is(err, engine.ErrAttemptTooLarge) {
		t.Fatalf("Score() error = %v, want ErrAttemptTooLarge", err)
	}
}

func TestScoreRejectsInvalidMode(t *testing.T) {
	t.Parallel()
	e := engine.New(*config.Default())

	att := attempt("take-6")
	att.Mode = score.Mode("shout")

	if _, err := e.Score(context.Background(), att); err == nil {
		t.Fatal("Score() error = nil, want invalid mode error")
	}
}

func TestScoreBatchPreservesOrder(t *testing.T) {
	t.Parallel()
	cfg := *config.Default()
	cfg.Engine.BatchConcurrency = 2
	e := engine.New(cfg)

	attempts := []engine.Attempt{attempt("a"), attempt("b"), attempt("c")}
	outs, err := e.ScoreBatch(context.Background(), attempts)
	if err != nil {
		t.Fatalf("ScoreBatch() error = %v", err)
	}
	if len(outs) != 3 {
		t.Fatalf("len(outs) = %d, want 3", len(outs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if outs[i].AttemptID != want {
			t.Errorf("outs[%d].AttemptID = %q, want %q", i, outs[i].AttemptID, want)
		}
	}
}

func TestScoreBatchFirstErrorAborts(t *testing.T) {
	t.Parallel()
	cfg := *config.Default()
	cfg.Engine.MaxAlignmentCells = 4
	e := engine.New(cfg)

	outs, err := e.ScoreBatch(context.Background(), []engine.Attempt{attempt("bad")})
	if !errors.Is(err, engine.ErrAttemptTooLarge) {
		t.Fatalf("ScoreBatch() error = %v, want ErrAttemptTooLarge", err)
	}
	if outs != nil {
		t.Errorf("outs = %v, want nil", outs)
	}
}

func TestScoreBatchEmpty(t *testing.T) {
	t.Parallel()
	e := engine.New(*config.Default())

	outs, err := e.ScoreBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("ScoreBatch() error = %v", err)
	}
	if outs != nil {
		t.Errorf("outs = %v, want nil", outs)
	}
}
