package offset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cantora-app/cantora/pkg/types"
)

// ErrAllEstimatorsFailed is returned by [Chain.EstimateOffset] when every
// registered estimator fails or is cooling down.
var ErrAllEstimatorsFailed = errors.New("all offset estimators failed")

// ChainConfig tunes the per-estimator failure handling of a [Chain].
type ChainConfig struct {
	// MaxFailures is the consecutive-failure count after which an
	// estimator is skipped for ResetTimeout. Default: 3.
	MaxFailures int

	// ResetTimeout is how long a tripped estimator is skipped before it is
	// retried. Default: 30s.
	ResetTimeout time.Duration
}

type chainEntry struct {
	name      string
	est       Estimator
	failures  int
	openUntil time.Time
}

// Chain composes a primary estimator with fallbacks tried in registration
// order. An estimator that keeps failing is skipped for a cooldown period so
// a broken remote routine does not slow every attempt.
//
// Chain itself implements [Estimator]. Safe for concurrent use.
type Chain struct {
	mu      sync.Mutex
	cfg     ChainConfig
	entries []*chainEntry
}

// NewChain creates a Chain with primary as the first estimator.
func NewChain(primary Estimator, primaryName string, cfg ChainConfig) *Chain {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Chain{
		cfg:     cfg,
		entries: []*chainEntry{{name: primaryName, est: primary}},
	}
}

// AddFallback appends a fallback estimator, tried after all earlier entries.
func (c *Chain) AddFallback(name string, est Estimator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, &chainEntry{name: name, est: est})
}

// EstimateOffset tries each estimator in order until one succeeds.
// Cooling-down entries are skipped. Returns [ErrAllEstimatorsFailed] wrapped
// with the last error when every entry fails.
func (c *Chain) EstimateOffset(ctx context.Context, reference, recording types.Envelope, refDurSec, recDurSec float64) (Estimate, error) {
	c.mu.Lock()
	entries := make([]*chainEntry, len(c.entries))
	copy(entries, c.entries)
	c.mu.Unlock()

	var lastErr error
	for _, entry := range entries {
		if !c.admit(entry) {
			slog.Debug("skipping offset estimator (cooling down)", "estimator", entry.name)
			continue
		}

		est, err := entry.est.EstimateOffset(ctx, reference, recording, refDurSec, recDurSec)
		if err == nil {
			c.recordSuccess(entry)
			return est, nil
		}
		lastErr = err
		c.recordFailure(entry)
		slog.Warn("offset estimator failed, trying next", "estimator", entry.name, "error", err)
	}

	if lastErr != nil {
		return Estimate{}, fmt.Errorf("%w: last error: %w", ErrAllEstimatorsFailed, lastErr)
	}
	return Estimate{}, ErrAllEstimatorsFailed
}

// admit reports whether entry may be tried now, closing an expired cooldown.
func (c *Chain) admit(entry *chainEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry.openUntil.IsZero() {
		return true
	}
	if time.Now().After(entry.openUntil) {
		entry.openUntil = time.Time{}
		entry.failures = 0
		return true
	}
	return false
}

func (c *Chain) recordSuccess(entry *chainEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.failures = 0
}

func (c *Chain) recordFailure(entry *chainEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.failures++
	if entry.failures >= c.cfg.MaxFailures {
		entry.openUntil = time.Now().Add(c.cfg.ResetTimeout)
		slog.Warn("offset estimator cooling down",
			"estimator", entry.name,
			"failures", entry.failures,
			"reset_timeout", c.cfg.ResetTimeout)
	}
}
