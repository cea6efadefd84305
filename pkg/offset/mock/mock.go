// Package mock provides a test double for the offset package interfaces.
//
// Use Estimator to feed a fixed Estimate into code under test and inspect
// the envelopes it was called with.
package mock

import (
	"context"
	"sync"

	"github.com/cantora-app/cantora/pkg/offset"
	"github.com/cantora-app/cantora/pkg/types"
)

// EstimateCall records a single invocation of Estimator.EstimateOffset.
type EstimateCall struct {
	Reference            types.Envelope
	Recording            types.Envelope
	ReferenceDurationSec float64
	RecordingDurationSec float64
}

// Estimator is a mock implementation of offset.Estimator.
type Estimator struct {
	mu sync.Mutex

	// Result is returned from every EstimateOffset call.
	Result offset.Estimate

	// Err, if non-nil, is returned as the error from EstimateOffset.
	Err error

	// Calls records every call to EstimateOffset.
	Calls []EstimateCall
}

// EstimateOffset records the call and returns Result, Err.
func (e *Estimator) EstimateOffset(_ context.Context, reference, recording types.Envelope, refDur, recDur float64) (offset.Estimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, EstimateCall{
		Reference:            reference,
		Recording:            recording,
		ReferenceDurationSec: refDur,
		RecordingDurationSec: recDur,
	})
	if e.Err != nil {
		return offset.Estimate{}, e.Err
	}
	return e.Result, nil
}
