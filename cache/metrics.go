package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache effectiveness.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records a store lookup made by GetOrCompute.
	RecordLookup(ctx context.Context, namespace string, hit bool)
	// RecordFetch records a fetch made on a miss.
	RecordFetch(ctx context.Context, namespace string, duration time.Duration, err error)
}

type otelMetrics struct {
	lookups      metric.Int64Counter
	fetchErrors  metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewOTelMetrics creates Metrics backed by an OpenTelemetry meter.
func NewOTelMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(
		"memocache.lookups",
		metric.WithDescription("Cache lookups made by get-or-compute"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	fetchErrors, err := meter.Int64Counter(
		"memocache.fetch.errors",
		metric.WithDescription("Fetches that failed and were not cached"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"memocache.fetch.duration_ms",
		metric.WithDescription("Fetch duration on cache miss in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		lookups:      lookups,
		fetchErrors:  fetchErrors,
		durationHist: durationHist,
	}, nil
}

func (m *otelMetrics) RecordLookup(ctx context.Context, namespace string, hit bool) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.namespace", namespace),
		attribute.Bool("cache.hit", hit),
	))
}

func (m *otelMetrics) RecordFetch(ctx context.Context, namespace string, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("cache.namespace", namespace))
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

type noopMetrics struct{}

// NoopMetrics returns Metrics that discard everything.
func NoopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordLookup(context.Context, string, bool) {}

func (noopMetrics) RecordFetch(context.Context, string, time.Duration, error) {}
