// Package score derives the headline multi-metric performance score for one
// sung attempt from pitch contours and energy envelopes, independently of
// word alignment.
//
// Scoring proceeds in four stages:
//
//  1. Sanitization: pitch samples outside the human-vocal-adjacent band are
//     zeroed (treated as unvoiced) so octave-detection artifacts cannot leak
//     into the statistics.
//  2. Offset compensation: the recording envelope is shifted by the
//     estimated lag so cross-signal correlation runs on aligned time bases.
//  3. Subscores: pitch (cents deviation, or envelope correlation when the
//     reference is mostly unvoiced), timing (envelope correlation blended
//     with a duration-ratio score), stability (cents spread around the mean
//     voiced pitch).
//  4. Blend: the practice mode's fixed weights are re-normalized to sum to 1
//     and applied.
//
// Missing signal degrades to explicit defaults — neutral 50 where the data
// is merely absent, hard 0 where a near-silent take makes the metric
// unscorable. Analysis is pure and safe for concurrent use.
package score

import (
	"math"

	"github.com/cantora-app/cantora/pkg/types"
)

// Mode is a named weighting profile controlling how subscores blend into the
// overall score.
type Mode string

const (
	ModeFull   Mode = "full"
	ModeWords  Mode = "words"
	ModeTiming Mode = "timing"
	ModePitch  Mode = "pitch"
)

// IsValid reports whether m is a recognised practice mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeFull, ModeWords, ModeTiming, ModePitch:
		return true
	}
	return false
}

// Weights is the relative blend per subscore. Values need not sum to 1; they
// are re-normalized before blending.
type Weights struct {
	Pitch, Timing, Stability, Words float64
}

// WeightsFor maps each practice mode to its standard weight record. Unknown
// modes fall back to the full profile; config validation rejects them at the
// boundary.
func WeightsFor(m Mode) Weights {
	switch m {
	case ModeWords:
		return Weights{Pitch: 0.20, Timing: 0.15, Stability: 0.10, Words: 0.55}
	case ModeTiming:
		return Weights{Pitch: 0.20, Timing: 0.50, Stability: 0.20, Words: 0.10}
	case ModePitch:
		return Weights{Pitch: 0.50, Timing: 0.20, Stability: 0.20, Words: 0.10}
	default:
		return Weights{Pitch: 0.30, Timing: 0.30, Stability: 0.20, Words: 0.20}
	}
}

const (
	// minVocalHz and maxVocalHz bound the plausible vocal band; samples
	// outside are treated as unvoiced.
	minVocalHz = 50
	maxVocalHz = 1100

	// minVoicedRatio is the reference voiced-frame ratio below which
	// per-note pitch comparison is meaningless and envelope correlation
	// scores tone instead.
	minVoicedRatio = 0.3

	// minStabilitySamples is the voiced-sample floor for a stability
	// verdict; below it the score stays neutral.
	minStabilitySamples = 5

	// lowEnergyThreshold marks a take as effectively silent.
	lowEnergyThreshold = 0.002

	// defaultBinMs is the envelope bin duration when no envelope/duration
	// pair is available to derive it.
	defaultBinMs = 50

	// corrBlendWeight is the correlation share of the timing score; the
	// remainder comes from the duration ratio.
	corrBlendWeight = 0.85
)

// Pitch score method labels.
const (
	LabelPitchAccuracy = "Pitch Accuracy"
	LabelToneMatch     = "Tone Match"
)

// Input carries the signals for one attempt. Any field may be zero-valued;
// every missing signal degrades to the documented default.
type Input struct {
	ReferencePitch types.PitchContour
	RecordingPitch types.PitchContour

	ReferenceEnergy types.Envelope
	RecordingEnergy types.Envelope

	ReferenceDurationSec float64
	RecordingDurationSec float64

	// EstimatedOffsetMs is the signed lag between reference and recording.
	EstimatedOffsetMs float64

	Mode Mode

	// Weights overrides the mode's standard weight profile when non-nil.
	Weights *Weights

	// WordScore is the externally-computed word accuracy in [0, 100], or
	// nil when no alignment ran. A missing score contributes 0 to the
	// blend, it does not drop the term.
	WordScore *float64
}

// Alignment reports cross-signal agreement details.
type Alignment struct {
	// TimingCorrelation is the envelope correlation clamped to [0, 1];
	// negative correlations report as 0.
	TimingCorrelation float64 `json:"timing_correlation"`
}

// Result is the multi-metric performance score, all score fields in [0, 100].
type Result struct {
	Overall   int `json:"overall"`
	Pitch     int `json:"pitch"`
	Timing    int `json:"timing"`
	Stability int `json:"stability"`

	// Words echoes the input word score when present.
	Words *int `json:"words,omitempty"`

	// Label names the pitch scoring method used: "Pitch Accuracy" for
	// voiced material, "Tone Match" when the reference is mostly unvoiced.
	Label string `json:"label"`

	Tips      []string  `json:"tips"`
	Alignment Alignment `json:"alignment"`
}

// Analyze derives the performance score for one attempt.
func Analyze(in Input) Result {
	refPitch := sanitize(in.ReferencePitch)
	recPitch := sanitize(in.RecordingPitch)

	binMs := binDurationMs(in.RecordingEnergy, in.RecordingDurationSec, in.ReferenceEnergy, in.ReferenceDurationSec)
	recEnergy := shiftEnvelope(in.RecordingEnergy, int(math.Round(in.EstimatedOffsetMs/binMs)))

	corr := pearson(in.ReferenceEnergy, recEnergy)
	reportedCorr := math.Max(0, corr)

	res := Result{Alignment: Alignment{TimingCorrelation: reportedCorr}}

	res.Pitch, res.Label = pitchScore(refPitch, recPitch, reportedCorr, in.EstimatedOffsetMs)
	res.Timing = timingScore(corr, in.ReferenceDurationSec, in.RecordingDurationSec)
	res.Stability = stabilityScore(recPitch)

	// A positive but near-silent envelope means the take carried no usable
	// signal: pitch and timing are unscorable, not merely neutral, and no
	// advisory tip beyond the level warning would be trustworthy.
	lowSignal := LowSignal(in.RecordingEnergy)
	if lowSignal {
		res.Pitch = 0
		res.Timing = 0
	}

	if in.WordScore != nil {
		w := int(math.Round(clamp(*in.WordScore, 0, 100)))
		res.Words = &w
	}

	w := in.Weights
	if w == nil {
		def := WeightsFor(in.Mode)
		w = &def
	}
	res.Overall = Blend(res.Pitch, res.Timing, res.Stability, in.WordScore, *w)

	if lowSignal {
		res.Tips = []string{"Input level was very low — check your microphone distance and record again."}
	} else {
		res.Tips = tips(res)
	}
	return res
}

// LowSignal reports whether env carries measurable but near-silent energy.
// An all-zero envelope is "no data", not low signal.
func LowSignal(env types.Envelope) bool {
	m := env.Mean()
	return m > 0 && m < lowEnergyThreshold
}

// sanitize zeroes pitch samples outside the vocal band, returning a copy.
func sanitize(c types.PitchContour) types.PitchContour {
	out := make(types.PitchContour, len(c))
	for i, s := range c {
		if s.Frequency < minVocalHz || s.Frequency > maxVocalHz {
			s.Frequency = 0
		}
		out[i] = s
	}
	return out
}

// binDurationMs derives the envelope bin duration from whichever
// envelope/duration pair is available, defaulting to 50ms.
func binDurationMs(recEnv types.Envelope, recDur float64, refEnv types.Envelope, refDur float64) float64 {
	if len(recEnv) > 0 && recDur > 0 {
		return recDur * 1000 / float64(len(recEnv))
	}
	if len(refEnv) > 0 && refDur > 0 {
		return refDur * 1000 / float64(len(refEnv))
	}
	return defaultBinMs
}

// shiftEnvelope realigns the recording envelope onto the reference time
// base: bin i of the result is the recording bin that sounded at reference
// bin i, given the recording started shiftBins late. Out-of-range bins are
// dropped to zero, never wrapped.
func shiftEnvelope(env types.Envelope, shiftBins int) types.Envelope {
	if shiftBins == 0 || len(env) == 0 {
		return env
	}
	out := make(types.Envelope, len(env))
	for i := range out {
		src := i - shiftBins
		if src >= 0 && src < len(env) {
			out[i] = env[src]
		}
	}
	return out
}

// pearson computes the normalized cross-correlation of the two envelopes
// over their common length. Flat or empty inputs yield 0.
func pearson(a, b types.Envelope) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// pitchScore compares the contours sample-by-sample in cents, or falls back
// to tone matching via envelope correlation when the reference is mostly
// unvoiced.
func pitchScore(ref, rec types.PitchContour, envCorr float64, offsetMs float64) (int, string) {
	voicedRatio := 0.0
	if len(ref) > 0 {
		voicedRatio = float64(ref.VoicedCount()) / float64(len(ref))
	}
	if voicedRatio < minVoicedRatio {
		return int(math.Round(envCorr * 100)), LabelToneMatch
	}

	shift := contourShiftSamples(rec, offsetMs)
	var sumAbsCents float64
	pairs := 0
	for i, s := range ref {
		j := i - shift
		if j < 0 || j >= len(rec) {
			continue
		}
		if s.Frequency <= 0 || rec[j].Frequency <= 0 {
			continue
		}
		sumAbsCents += math.Abs(1200 * math.Log2(rec[j].Frequency/s.Frequency))
		pairs++
	}
	if pairs == 0 {
		// Voiced reference but nothing voiced lined up in the recording:
		// not enough evidence either way.
		return 50, LabelPitchAccuracy
	}
	avgAbsCents := sumAbsCents / float64(pairs)
	return int(math.Round(math.Max(0, 100-math.Min(100, avgAbsCents*2)))), LabelPitchAccuracy
}

// contourShiftSamples converts the estimated offset into whole contour
// samples using the recording contour's own sample step.
func contourShiftSamples(c types.PitchContour, offsetMs float64) int {
	if len(c) < 2 {
		return 0
	}
	step := (c[len(c)-1].Time - c[0].Time) / float64(len(c)-1)
	if step <= 0 {
		return 0
	}
	return int(math.Round(offsetMs / 1000 / step))
}

// timingScore blends envelope correlation with a duration-ratio score.
// Non-positive correlation carries no rhythm evidence, so the ratio score
// stands alone.
func timingScore(corr, refDur, recDur float64) int {
	ratioScore := 50.0
	if refDur > 0 && recDur > 0 {
		ratioScore = clamp(math.Round(100-math.Abs(1-recDur/refDur)*100), 0, 100)
	}
	if corr > 0 {
		return int(math.Round(corrBlendWeight*corr*100 + (1-corrBlendWeight)*ratioScore))
	}
	return int(ratioScore)
}

// stabilityScore penalizes pitch spread around the mean voiced frequency.
// Fewer than minStabilitySamples voiced samples is insufficient signal and
// scores the neutral 50.
func stabilityScore(rec types.PitchContour) int {
	var freqs []float64
	for _, s := range rec {
		if s.Frequency > 0 {
			freqs = append(freqs, s.Frequency)
		}
	}
	if len(freqs) < minStabilitySamples {
		return 50
	}
	mean := 0.0
	for _, f := range freqs {
		mean += f
	}
	mean /= float64(len(freqs))

	var sum, sumSq float64
	for _, f := range freqs {
		c := 1200 * math.Log2(f/mean)
		sum += c
		sumSq += c * c
	}
	n := float64(len(freqs))
	variance := sumSq/n - (sum/n)*(sum/n)
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)
	return int(clamp(math.Round(100-std*4), 0, 100))
}

// OverallScore blends the subscores using the mode's standard weights.
func OverallScore(pitch, timing, stability int, wordScore *float64, mode Mode) int {
	return Blend(pitch, timing, stability, wordScore, WeightsFor(mode))
}

// Blend combines the subscores under w, re-normalized to sum to 1 before
// blending. A missing word score contributes 0; the term is never skipped.
func Blend(pitch, timing, stability int, wordScore *float64, w Weights) int {
	total := w.Pitch + w.Timing + w.Stability + w.Words
	if total <= 0 {
		return 0
	}
	words := 0.0
	if wordScore != nil {
		words = clamp(*wordScore, 0, 100)
	}
	sum := float64(pitch)*w.Pitch/total +
		float64(timing)*w.Timing/total +
		float64(stability)*w.Stability/total +
		words*w.Words/total
	return int(math.Round(sum))
}

func tips(res Result) []string {
	var out []string
	if res.Pitch < 60 {
		if res.Label == LabelToneMatch {
			out = append(out, "Your delivery drifted from the track's energy — match its rises and falls.")
		} else {
			out = append(out, "Pitch drifted from the melody — practice the tricky intervals slowly.")
		}
	}
	if res.Timing < 60 {
		out = append(out, "Your phrasing slipped off the track's rhythm — rehearse with the original playing quietly.")
	}
	if res.Stability < 60 {
		out = append(out, "Held notes wavered — steady breath support will tighten them up.")
	}
	if len(out) == 0 {
		out = append(out, "Strong performance — nothing major to fix.")
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
