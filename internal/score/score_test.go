package score_test

import (
	"math"
	"testing"

	"github.com/cantora-app/cantora/internal/score"
	"github.com/cantora-app/cantora/pkg/types"
)

// contour builds a fixed-step pitch contour from frequencies, 50ms apart.
func contour(freqs ...float64) types.PitchContour {
	out := make(types.PitchContour, len(freqs))
	for i, f := range freqs {
		out[i] = types.PitchSample{Time: float64(i) * 0.05, Frequency: f}
	}
	return out
}

func steady(hz float64, n int) types.PitchContour {
	freqs := make([]float64, n)
	for i := range freqs {
		freqs[i] = hz
	}
	return contour(freqs...)
}

// bump is an envelope with a single energy peak at the given bin.
func bump(n, peak int) types.Envelope {
	env := make(types.Envelope, n)
	for i := range env {
		d := float64(i - peak)
		env[i] = 0.2 + 0.8*math.Exp(-d*d/4)
	}
	return env
}

func TestOverallScore_WordsModeDominates(t *testing.T) {
	t.Parallel()

	wordScore := 100.0
	got := score.OverallScore(100, 0, 0, &wordScore, score.ModeWords)
	if got <= 70 {
		t.Errorf("OverallScore(words mode, words=100, pitch=100) = %d, want > 70", got)
	}
}

func TestOverallScore_PitchMode(t *testing.T) {
	t.Parallel()

	got := score.OverallScore(100, 0, 100, nil, score.ModePitch)
	if got <= 60 {
		t.Errorf("OverallScore(pitch mode, pitch=100, stability=100) = %d, want > 60", got)
	}
}

func TestOverallScore_MissingWordsContributesZero(t *testing.T) {
	t.Parallel()

	withNil := score.OverallScore(80, 80, 80, nil, score.ModeFull)
	zero := 0.0
	withZero := score.OverallScore(80, 80, 80, &zero, score.ModeFull)
	if withNil != withZero {
		t.Errorf("nil word score = %d, explicit zero = %d; a missing score must contribute 0, not drop the term", withNil, withZero)
	}
}

func TestBlend_CustomWeights(t *testing.T) {
	t.Parallel()

	// A pitch-only profile ignores every other subscore.
	got := score.Blend(90, 0, 0, nil, score.Weights{Pitch: 1})
	if got != 90 {
		t.Errorf("Blend(pitch-only) = %d, want 90", got)
	}

	// Scaling a profile must not change the result: weights re-normalize.
	a := score.Blend(70, 60, 50, nil, score.Weights{Pitch: 1, Timing: 1, Stability: 2})
	b := score.Blend(70, 60, 50, nil, score.Weights{Pitch: 10, Timing: 10, Stability: 20})
	if a != b {
		t.Errorf("scaled weights changed the blend: %d vs %d", a, b)
	}
}

func TestAnalyze_WeightsOverride(t *testing.T) {
	t.Parallel()

	words := 100.0
	in := score.Input{
		Mode:      score.ModeFull,
		WordScore: &words,
		Weights:   &score.Weights{Words: 1},
	}
	res := score.Analyze(in)
	if res.Overall != 100 {
		t.Errorf("Overall = %d, want 100 under a words-only override", res.Overall)
	}
}

func TestAnalyze_PerfectMatch(t *testing.T) {
	t.Parallel()

	pitch := steady(220, 20)
	env := bump(20, 10)
	res := score.Analyze(score.Input{
		ReferencePitch:       pitch,
		RecordingPitch:       pitch,
		ReferenceEnergy:      env,
		RecordingEnergy:      env,
		ReferenceDurationSec: 1,
		RecordingDurationSec: 1,
		Mode:                 score.ModeFull,
	})

	if res.Pitch != 100 {
		t.Errorf("Pitch = %d, want 100 for identical contours", res.Pitch)
	}
	if res.Label != score.LabelPitchAccuracy {
		t.Errorf("Label = %q, want %q", res.Label, score.LabelPitchAccuracy)
	}
	if res.Timing != 100 {
		t.Errorf("Timing = %d, want 100 for identical envelopes and durations", res.Timing)
	}
	if res.Stability != 100 {
		t.Errorf("Stability = %d, want 100 for a rock-steady note", res.Stability)
	}
	if res.Alignment.TimingCorrelation < 0.99 {
		t.Errorf("TimingCorrelation = %v, want ~1", res.Alignment.TimingCorrelation)
	}
}

func TestAnalyze_CentsDeviation(t *testing.T) {
	t.Parallel()

	// Recording a constant 10 cents sharp: avg|cents| = 10, score 100-20.
	sharp := 220 * math.Pow(2, 10.0/1200)
	res := score.Analyze(score.Input{
		ReferencePitch: steady(220, 20),
		RecordingPitch: steady(sharp, 20),
		Mode:           score.ModeFull,
	})
	if res.Pitch != 80 {
		t.Errorf("Pitch = %d, want 80 for a 10-cent deviation", res.Pitch)
	}
}

func TestAnalyze_OutOfBandPitchIsUnvoiced(t *testing.T) {
	t.Parallel()

	// 1500Hz is outside the vocal band; after sanitization the reference is
	// entirely unvoiced and scoring falls back to tone matching.
	res := score.Analyze(score.Input{
		ReferencePitch:       steady(1500, 20),
		RecordingPitch:       steady(220, 20),
		ReferenceEnergy:      bump(20, 10),
		RecordingEnergy:      bump(20, 10),
		ReferenceDurationSec: 1,
		RecordingDurationSec: 1,
		Mode:                 score.ModeFull,
	})
	if res.Label != score.LabelToneMatch {
		t.Fatalf("Label = %q, want %q for an unvoiced reference", res.Label, score.LabelToneMatch)
	}
	// Identical envelopes correlate perfectly: tone match scores 100.
	if res.Pitch != 100 {
		t.Errorf("Pitch = %d, want 100 from envelope correlation", res.Pitch)
	}
}

func TestAnalyze_OffsetCompensation(t *testing.T) {
	t.Parallel()

	ref := bump(20, 6)
	// The recording device started 200ms (4 bins at 50ms) late, so content
	// appears 4 bins earlier in the recording's own timeline.
	rec := bump(20, 2)

	uncompensated := score.Analyze(score.Input{
		ReferenceEnergy:      ref,
		RecordingEnergy:      rec,
		ReferenceDurationSec: 1,
		RecordingDurationSec: 1,
		Mode:                 score.ModeTiming,
	})
	compensated := score.Analyze(score.Input{
		ReferenceEnergy:      ref,
		RecordingEnergy:      rec,
		ReferenceDurationSec: 1,
		RecordingDurationSec: 1,
		EstimatedOffsetMs:    200,
		Mode:                 score.ModeTiming,
	})

	if compensated.Alignment.TimingCorrelation <= uncompensated.Alignment.TimingCorrelation {
		t.Errorf("compensated correlation %v not above uncompensated %v",
			compensated.Alignment.TimingCorrelation, uncompensated.Alignment.TimingCorrelation)
	}
	if compensated.Alignment.TimingCorrelation < 0.9 {
		t.Errorf("compensated correlation = %v, want ~1 after the 4-bin shift", compensated.Alignment.TimingCorrelation)
	}
}

func TestAnalyze_LowSignalOverride(t *testing.T) {
	t.Parallel()

	quiet := make(types.Envelope, 20)
	for i := range quiet {
		quiet[i] = 0.001
	}
	res := score.Analyze(score.Input{
		ReferencePitch:       steady(220, 20),
		RecordingPitch:       steady(220, 20),
		ReferenceEnergy:      bump(20, 10),
		RecordingEnergy:      quiet,
		ReferenceDurationSec: 1,
		RecordingDurationSec: 1,
		Mode:                 score.ModeFull,
	})

	if res.Pitch != 0 || res.Timing != 0 {
		t.Errorf("Pitch=%d Timing=%d, want 0/0 under the low-signal override", res.Pitch, res.Timing)
	}
	if len(res.Tips) != 1 {
		t.Fatalf("Tips = %v, want the single low-input message", res.Tips)
	}
}

func TestAnalyze_StabilityNeedsSamples(t *testing.T) {
	t.Parallel()

	res := score.Analyze(score.Input{
		RecordingPitch: steady(220, 3), // below the 5-sample floor
		Mode:           score.ModeFull,
	})
	if res.Stability != 50 {
		t.Errorf("Stability = %d, want the neutral 50 with < 5 voiced samples", res.Stability)
	}
}

func TestAnalyze_EmptyInputDegrades(t *testing.T) {
	t.Parallel()

	res := score.Analyze(score.Input{Mode: score.ModeFull})
	if res.Stability != 50 {
		t.Errorf("Stability = %d, want 50", res.Stability)
	}
	if res.Timing != 50 {
		t.Errorf("Timing = %d, want the neutral duration-ratio fallback of 50", res.Timing)
	}
	if res.Label != score.LabelToneMatch {
		t.Errorf("Label = %q, want tone match for an empty (unvoiced) reference", res.Label)
	}
	if res.Alignment.TimingCorrelation != 0 {
		t.Errorf("TimingCorrelation = %v, want 0", res.Alignment.TimingCorrelation)
	}
}
