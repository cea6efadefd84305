// Package align matches a reference lyric word sequence against the
// transcribed words of a sung attempt and classifies each reference word's
// outcome.
//
// The algorithm proceeds in two stages:
//
//  1. Weighted edit-distance alignment over the two token sequences.
//     Deleting a reference word or inserting a user word costs 1; matching a
//     pair costs 0 when their normalized forms are identical, 0.5 when their
//     consonant skeletons are similar enough, and 1 otherwise. The reduced
//     substitution cost lets a near-miss transcription "win" cheaply against
//     a deletion+insertion pair, so it stays attached to the right reference
//     slot instead of splitting into a miss plus an extra.
//
//  2. Backtracking from the full table, preferring match over delete over
//     insert on cost ties to favour alignment over fragmentation. Matched
//     pairs are classified by normalized equality and offset-compensated
//     timing; unmatched reference words become missed, unmatched user words
//     become extras.
//
// Phonetic closeness only biases the alignment cost — correctness always
// requires normalized-token equality.
//
// Alignment is a pure computation with no shared state; every call is
// independent and safe to run concurrently. Inputs are assumed temporally
// monotonic and non-negative; callers bound n*m before invoking Align if
// adversarial transcript lengths are possible.
package align

import (
	"math"

	"github.com/cantora-app/cantora/internal/token"
	"github.com/cantora-app/cantora/pkg/types"
)

// Status classifies the outcome of one reference word.
type Status string

const (
	// StatusCorrect means the word was sung and landed within the timing
	// threshold.
	StatusCorrect Status = "correct"

	// StatusCorrectEarly means the word was sung ahead of the reference by
	// more than the threshold.
	StatusCorrectEarly Status = "correct_early"

	// StatusCorrectLate means the word was sung behind the reference by more
	// than the threshold.
	StatusCorrectLate Status = "correct_late"

	// StatusIncorrect means a user word aligned to this slot but is not the
	// reference word.
	StatusIncorrect Status = "incorrect"

	// StatusMissed means no user word aligned to this reference slot.
	StatusMissed Status = "missed"
)

// IsCorrect reports whether s is one of the three correct statuses.
func (s Status) IsCorrect() bool {
	return s == StatusCorrect || s == StatusCorrectEarly || s == StatusCorrectLate
}

// Label buckets a confidence value for display.
type Label string

const (
	LabelHigh   Label = "High"
	LabelMedium Label = "Medium"
	LabelLow    Label = "Low"
)

// LabelFor maps a confidence in [0, 1] to its display bucket.
func LabelFor(confidence float64) Label {
	switch {
	case confidence >= 0.78:
		return LabelHigh
	case confidence >= 0.5:
		return LabelMedium
	default:
		return LabelLow
	}
}

const (
	// defaultEarlyLateThresholdMs is the timing slack before a correct word
	// is flagged early or late.
	defaultEarlyLateThresholdMs = 200

	// defaultPhoneticThreshold is the minimum skeleton similarity for the
	// reduced substitution cost.
	defaultPhoneticThreshold = 0.70

	// phoneticMatchCost is the substitution cost for phonetically-close
	// mismatches. Must stay below 2 (delete+insert) to keep near-misses
	// aligned.
	phoneticMatchCost = 0.5
)

// Options tunes a single Align call. The zero value is usable: offsets 0,
// threshold 200 ms, unknown durations.
type Options struct {
	// ReferenceOffsetSec is subtracted from every reference timestamp before
	// computing deltas (typically the verse start within the song).
	ReferenceOffsetSec float64

	// UserOffsetSec is subtracted from every user timestamp before computing
	// deltas (typically the estimated lag between reference and recording).
	UserOffsetSec float64

	// EarlyLateThresholdMs is the timing slack in milliseconds. 0 means the
	// default of 200.
	EarlyLateThresholdMs float64

	// PhoneticThreshold is the minimum skeleton similarity for the reduced
	// substitution cost. 0 means the default of 0.70.
	PhoneticThreshold float64

	// ReferenceDurationSec and UserDurationSec feed the pace ratio. The
	// ratio defaults to 1 unless both are strictly positive.
	ReferenceDurationSec float64
	UserDurationSec      float64
}

func (o Options) withDefaults() Options {
	if o.EarlyLateThresholdMs == 0 {
		o.EarlyLateThresholdMs = defaultEarlyLateThresholdMs
	}
	if o.PhoneticThreshold == 0 {
		o.PhoneticThreshold = defaultPhoneticThreshold
	}
	return o
}

// UserMatch describes the user word attached to a reference slot.
type UserMatch struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Index int     `json:"index"`
}

// WordResult is the verdict for one reference word. Exactly one WordResult
// exists per reference token.
type WordResult struct {
	RefIndex int     `json:"ref_index"`
	RefWord  string  `json:"ref_word"`
	RefStart float64 `json:"ref_start"`
	RefEnd   float64 `json:"ref_end"`
	Status   Status  `json:"status"`

	// User is the aligned user word, or nil when Status is missed.
	User *UserMatch `json:"user,omitempty"`

	// DeltaMs is the offset-compensated start delay in milliseconds. It is
	// only computed for correct statuses; for incorrect and missed words it
	// is 0 and carries no meaning.
	DeltaMs int `json:"delta_ms"`

	// Confidence is 1 for correct words, the skeleton similarity for
	// incorrect words, and 0 for missed words.
	Confidence      float64 `json:"confidence"`
	ConfidenceLabel Label   `json:"confidence_label"`
}

// Metrics aggregates one alignment.
type Metrics struct {
	// WordAccuracyPct counts all three correct statuses against the total
	// reference word count, rounded.
	WordAccuracyPct int `json:"word_accuracy_pct"`

	// TimingMeanAbsMs is the mean absolute delay among correct words only;
	// incorrect and missed words carry no meaningful timing.
	TimingMeanAbsMs float64 `json:"timing_mean_abs_ms"`

	// PaceRatio is user duration / reference duration, or 1 when either
	// duration is unknown or non-positive.
	PaceRatio float64 `json:"pace_ratio"`

	MissedWords int `json:"missed_words"`
	ExtraWords  int `json:"extra_words"`
}

// Result is the full outcome of one Align call.
type Result struct {
	// Words holds exactly one entry per reference token, in reference order.
	Words []WordResult `json:"words"`

	// Extras are user tokens that aligned to no reference slot. They are
	// reported separately and never consume a reference slot.
	Extras []types.WordToken `json:"extras,omitempty"`

	Metrics Metrics `json:"metrics"`

	// ConfidenceLabel buckets the unweighted average of all per-word
	// confidences.
	ConfidenceLabel Label `json:"confidence_label"`
}

// Align matches reference against user and classifies every reference word.
// Empty sequences degrade without error: an empty reference yields no word
// results and all user tokens as extras; an empty user sequence yields every
// reference word missed.
func Align(reference, user []types.WordToken, opts Options) Result {
	opts = opts.withDefaults()
	n, m := len(reference), len(user)

	refNorm := make([]string, n)
	for i, w := range reference {
		refNorm[i] = token.Normalize(w.Word)
	}
	userNorm := make([]string, m)
	for j, w := range user {
		userNorm[j] = token.Normalize(w.Word)
	}

	// Skeleton similarity per pair, computed once and reused by the DP
	// table, the backtrack, and the confidence of incorrect verdicts.
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, m)
		for j := range sim[i] {
			sim[i][j] = token.Similarity(reference[i].Word, user[j].Word)
		}
	}

	matchCost := func(i, j int) float64 {
		if refNorm[i] == userNorm[j] {
			return 0
		}
		if sim[i][j] >= opts.PhoneticThreshold {
			return phoneticMatchCost
		}
		return 1
	}

	// Edit-distance DP. Costs are multiples of 0.5, so float comparisons in
	// the backtrack are exact.
	cost := make([][]float64, n+1)
	for i := range cost {
		cost[i] = make([]float64, m+1)
	}
	for i := 1; i <= n; i++ {
		cost[i][0] = float64(i)
	}
	for j := 1; j <= m; j++ {
		cost[0][j] = float64(j)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			c := cost[i-1][j-1] + matchCost(i-1, j-1)
			if d := cost[i-1][j] + 1; d < c {
				c = d
			}
			if d := cost[i][j-1] + 1; d < c {
				c = d
			}
			cost[i][j] = c
		}
	}

	// Backtrack, preferring match over delete over insert on ties.
	matchedUser := make([]int, n) // user index per ref slot, -1 when missed
	for i := range matchedUser {
		matchedUser[i] = -1
	}
	extraUser := make([]bool, m)
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && cost[i][j] == cost[i-1][j-1]+matchCost(i-1, j-1):
			matchedUser[i-1] = j - 1
			i--
			j--
		case i > 0 && cost[i][j] == cost[i-1][j]+1:
			i--
		default:
			extraUser[j-1] = true
			j--
		}
	}

	res := Result{Words: make([]WordResult, n)}
	for ri := range reference {
		ref := reference[ri]
		wr := WordResult{
			RefIndex: ref.Index,
			RefWord:  ref.Word,
			RefStart: ref.Start,
			RefEnd:   ref.End,
		}
		if uj := matchedUser[ri]; uj >= 0 {
			u := user[uj]
			wr.User = &UserMatch{Word: u.Word, Start: u.Start, End: u.End, Index: u.Index}
			if refNorm[ri] == userNorm[uj] {
				delta := (u.Start - opts.UserOffsetSec) - (ref.Start - opts.ReferenceOffsetSec)
				wr.DeltaMs = int(math.Round(delta * 1000))
				switch {
				case float64(wr.DeltaMs) < -opts.EarlyLateThresholdMs:
					wr.Status = StatusCorrectEarly
				case float64(wr.DeltaMs) > opts.EarlyLateThresholdMs:
					wr.Status = StatusCorrectLate
				default:
					wr.Status = StatusCorrect
				}
				wr.Confidence = 1
			} else {
				wr.Status = StatusIncorrect
				wr.Confidence = sim[ri][uj]
			}
		} else {
			wr.Status = StatusMissed
			wr.Confidence = 0
		}
		wr.ConfidenceLabel = LabelFor(wr.Confidence)
		res.Words[ri] = wr
	}

	for uj, extra := range extraUser {
		if extra {
			res.Extras = append(res.Extras, user[uj])
		}
	}

	res.Metrics = computeMetrics(res.Words, len(res.Extras), opts)
	res.ConfidenceLabel = LabelFor(averageConfidence(res.Words))
	return res
}

func computeMetrics(words []WordResult, extras int, opts Options) Metrics {
	m := Metrics{PaceRatio: 1, ExtraWords: extras}
	correct := 0
	timingSum := 0.0
	for _, w := range words {
		switch {
		case w.Status.IsCorrect():
			correct++
			timingSum += math.Abs(float64(w.DeltaMs))
		case w.Status == StatusMissed:
			m.MissedWords++
		}
	}
	if len(words) > 0 {
		m.WordAccuracyPct = int(math.Round(100 * float64(correct) / float64(len(words))))
	}
	if correct > 0 {
		m.TimingMeanAbsMs = timingSum / float64(correct)
	}
	if opts.ReferenceDurationSec > 0 && opts.UserDurationSec > 0 {
		m.PaceRatio = opts.UserDurationSec / opts.ReferenceDurationSec
	}
	return m
}

func averageConfidence(words []WordResult) float64 {
	if len(words) == 0 {
		return 0
	}
	sum := 0.0
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
