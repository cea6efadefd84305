// Package offset defines the Estimator interface for start-offset detection
// between a reference track and a recorded attempt.
//
// The scoring core never measures the lag itself — a collaborator (typically
// an envelope cross-correlation routine running next to the audio pipeline)
// produces a single signed millisecond estimate, and the core consumes it to
// rebase the two timelines before word deltas and envelope correlation are
// computed. The method string is informational only; the core never branches
// on it.
//
// Implementations must be safe for concurrent use.
package offset

import (
	"context"

	"github.com/cantora-app/cantora/pkg/types"
)

// Estimate is the result of one offset estimation between a reference track
// and a recording.
type Estimate struct {
	// LagMs is the signed lag in milliseconds: positive when the recording
	// starts after the reference, negative when it starts early.
	LagMs float64

	// Method names the routine that produced the estimate (e.g.
	// "envelope-xcorr", "manual"). Informational only.
	Method string

	// Confidence is the estimator's self-reported confidence in [0, 1].
	// Zero means the estimator could not judge its own quality.
	Confidence float64
}

// Estimator produces a lag estimate from the two tracks' energy envelopes
// and durations. Implementations live with the audio pipeline; the scoring
// core only depends on this interface.
type Estimator interface {
	// EstimateOffset computes the lag between reference and recording.
	// Both envelopes use the fixed-step convention of [types.Envelope].
	// Empty envelopes must yield a zero Estimate, not an error.
	EstimateOffset(ctx context.Context, reference, recording types.Envelope, referenceDurationSec, recordingDurationSec float64) (Estimate, error)
}
