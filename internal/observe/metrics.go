// Package observe provides observability primitives for the Cantora scoring
// engine: OpenTelemetry metrics, tracing helpers, and the SDK provider
// setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Cantora metrics.
const meterName = "github.com/cantora-app/cantora"

// Metrics holds all OpenTelemetry metric instruments for the engine.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ScoreDuration tracks end-to-end attempt scoring latency.
	ScoreDuration metric.Float64Histogram

	// AlignDuration tracks word-alignment latency.
	AlignDuration metric.Float64Histogram

	// AttemptsScored counts scored attempts. Use with attribute:
	//   attribute.String("mode", ...)
	AttemptsScored metric.Int64Counter

	// TruncatedTakes counts attempts cut short by the coverage guard.
	TruncatedTakes metric.Int64Counter

	// LowSignalTakes counts attempts hit by the low-signal override.
	LowSignalTakes metric.Int64Counter

	// RejectedAttempts counts attempts rejected before scoring (e.g. the
	// alignment size bound). Use with attribute:
	//   attribute.String("reason", ...)
	RejectedAttempts metric.Int64Counter

	// AlignedWords counts reference words processed by the aligner.
	AlignedWords metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// in-memory scoring latencies.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ScoreDuration, err = m.Float64Histogram("cantora.score.duration",
		metric.WithDescription("End-to-end latency of scoring one attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AlignDuration, err = m.Float64Histogram("cantora.align.duration",
		metric.WithDescription("Latency of word alignment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AttemptsScored, err = m.Int64Counter("cantora.attempts.scored",
		metric.WithDescription("Total scored attempts by practice mode."),
	); err != nil {
		return nil, err
	}
	if met.TruncatedTakes, err = m.Int64Counter("cantora.takes.truncated",
		metric.WithDescription("Total attempts truncated by the coverage guard."),
	); err != nil {
		return nil, err
	}
	if met.LowSignalTakes, err = m.Int64Counter("cantora.takes.low_signal",
		metric.WithDescription("Total attempts hit by the low-signal override."),
	); err != nil {
		return nil, err
	}
	if met.RejectedAttempts, err = m.Int64Counter("cantora.attempts.rejected",
		metric.WithDescription("Total attempts rejected before scoring, by reason."),
	); err != nil {
		return nil, err
	}
	if met.AlignedWords, err = m.Int64Counter("cantora.words.aligned",
		metric.WithDescription("Total reference words processed by the aligner."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
