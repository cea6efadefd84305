// Package types defines the shared value types exchanged between the Cantora
// scoring core and its collaborators: the transcription service producing
// timed word tokens, the pitch-extraction stage producing contours and
// energy envelopes, and the offset estimator.
//
// These types form the lingua franca between the aligner, the feedback
// builder, and the performance scorer. They are intentionally minimal — each
// package defines its own domain types, but cross-cutting data structures
// live here to avoid circular imports. All of them are plain immutable data
// values; callers own their lifetime. Timestamps are seconds relative to the
// start of the token's own audio timeline.
package types

import "encoding/json"

// NoLine marks a [WordToken] that is not assigned to any lyric line.
const NoLine = -1

// WordToken is one timed word from a transcript. Reference tokens come from
// the song's ground-truth lyric timeline; user tokens come from transcribing
// the sung attempt. Index is the token's position within its own sequence
// and serves as a stable identity key.
type WordToken struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Index int     `json:"index"`

	// LineIndex assigns the token to a lyric line, or [NoLine] when line
	// boundaries are unknown for this transcript.
	LineIndex int `json:"line_index"`
}

// UnmarshalJSON decodes a token, mapping an absent "line_index" field to
// [NoLine]. Line 0 is a valid assignment, so the zero value cannot double
// as the sentinel at the JSON boundary.
func (w *WordToken) UnmarshalJSON(data []byte) error {
	type plain WordToken
	aux := struct {
		*plain
		LineIndex *int `json:"line_index"`
	}{plain: (*plain)(w)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.LineIndex == nil {
		w.LineIndex = NoLine
	} else {
		w.LineIndex = *aux.LineIndex
	}
	return nil
}

// Duration returns the token's span in seconds.
func (w WordToken) Duration() float64 {
	return w.End - w.Start
}

// Line is one lyric line boundary on the reference timeline.
type Line struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// PitchSample is one fundamental-frequency observation. Frequency is in Hz;
// a frequency of 0 marks an unvoiced frame.
type PitchSample struct {
	Time      float64 `json:"time"`
	Frequency float64 `json:"frequency"`
}

// PitchContour is an ordered sequence of pitch samples covering one audio
// timeline.
type PitchContour []PitchSample

// VoicedCount returns the number of samples with a positive frequency.
func (c PitchContour) VoicedCount() int {
	n := 0
	for _, s := range c {
		if s.Frequency > 0 {
			n++
		}
	}
	return n
}

// Envelope is a fixed-step RMS energy sequence for one audio timeline.
// The step duration is not carried here; consumers derive it from the
// envelope length and the audio's total duration.
type Envelope []float64

// Mean returns the average energy, or 0 for an empty envelope.
func (e Envelope) Mean() float64 {
	if len(e) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range e {
		sum += v
	}
	return sum / float64(len(e))
}
