package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome classifies a cache lookup.
type Outcome string

const (
	OutcomeHit   Outcome = "hit"   // fresh entry served
	OutcomeStale Outcome = "stale" // stale entry served, refresh scheduled
	OutcomeMiss  Outcome = "miss"  // producer invoked
	OutcomeJoin  Outcome = "join"  // joined an in-flight producer call
)

// Metrics records cache metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records how a GetOrSet call was satisfied.
	RecordLookup(ctx context.Context, meta CacheMeta, outcome Outcome)

	// RecordProduce records one producer invocation.
	RecordProduce(ctx context.Context, meta CacheMeta, duration time.Duration, background bool, err error)

	// RecordEviction records entries removed to respect the capacity bound.
	RecordEviction(ctx context.Context, meta CacheMeta, n int)

	// RecordExpired records entries removed because they fully expired.
	RecordExpired(ctx context.Context, meta CacheMeta, n int)
}

type metricsImpl struct {
	lookups      metric.Int64Counter
	produceTotal metric.Int64Counter
	produceErrs  metric.Int64Counter
	produceHist  metric.Float64Histogram
	evictions    metric.Int64Counter
	expired      metric.Int64Counter
}

// NewMetrics creates the cache instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	lookups, err := meter.Int64Counter(
		"cache.lookups",
		metric.WithDescription("Cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	produceTotal, err := meter.Int64Counter(
		"cache.produce.total",
		metric.WithDescription("Total number of producer invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	produceErrs, err := meter.Int64Counter(
		"cache.produce.errors",
		metric.WithDescription("Total number of failed producer invocations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	produceHist, err := meter.Float64Histogram(
		"cache.produce.duration_ms",
		metric.WithDescription("Producer invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"cache.evictions",
		metric.WithDescription("Entries evicted to respect the capacity bound"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	expired, err := meter.Int64Counter(
		"cache.expired",
		metric.WithDescription("Entries removed after full expiry"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		produceTotal: produceTotal,
		produceErrs:  produceErrs,
		produceHist:  produceHist,
		evictions:    evictions,
		expired:      expired,
	}, nil
}

func cacheAttrs(meta CacheMeta, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := make([]attribute.KeyValue, 0, 2+len(extra))
	attrs = append(attrs, attribute.String("cache.id", meta.CacheID()))
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("cache.namespace", meta.Namespace))
	}
	attrs = append(attrs, extra...)
	return metric.WithAttributes(attrs...)
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta CacheMeta, outcome Outcome) {
	m.lookups.Add(ctx, 1, cacheAttrs(meta, attribute.String("cache.outcome", string(outcome))))
}

func (m *metricsImpl) RecordProduce(ctx context.Context, meta CacheMeta, duration time.Duration, background bool, err error) {
	opt := cacheAttrs(meta, attribute.Bool("cache.background", background))

	m.produceTotal.Add(ctx, 1, opt)
	if err != nil {
		m.produceErrs.Add(ctx, 1, opt)
	}
	m.produceHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordEviction(ctx context.Context, meta CacheMeta, n int) {
	if n <= 0 {
		return
	}
	m.evictions.Add(ctx, int64(n), cacheAttrs(meta))
}

func (m *metricsImpl) RecordExpired(ctx context.Context, meta CacheMeta, n int) {
	if n <= 0 {
		return
	}
	m.expired.Add(ctx, int64(n), cacheAttrs(meta))
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordLookup(context.Context, CacheMeta, Outcome)                     {}
func (noopMetrics) RecordProduce(context.Context, CacheMeta, time.Duration, bool, error) {}
func (noopMetrics) RecordEviction(context.Context, CacheMeta, int)                       {}
func (noopMetrics) RecordExpired(context.Context, CacheMeta, int)                        {}
