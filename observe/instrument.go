package observe

import (
	"context"
	"errors"
	"time"
)

// ErrNilObserver is returned by InstrumentationFromObserver for a nil Observer.
var ErrNilObserver = errors.New("observe: observer is nil")

// Instrumentation bundles the tracer, metrics and logger a cache reports to.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: Produce propagates the span context into the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Instrumentation struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewInstrumentation creates an Instrumentation. Nil components become no-ops.
func NewInstrumentation(tracer Tracer, metrics Metrics, logger Logger) *Instrumentation {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Instrumentation{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopInstrumentation returns an Instrumentation that records nothing.
func NopInstrumentation() *Instrumentation {
	return NewInstrumentation(nil, nil, nil)
}

// InstrumentationFromObserver creates an Instrumentation from an Observer.
func InstrumentationFromObserver(obs Observer) (*Instrumentation, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewInstrumentation(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the logger used by this Instrumentation.
func (in *Instrumentation) Logger() Logger {
	return in.logger
}

// Metrics returns the metrics recorder used by this Instrumentation.
func (in *Instrumentation) Metrics() Metrics {
	return in.metrics
}

// Produce runs fn inside a producer span and records its duration and outcome.
func (in *Instrumentation) Produce(ctx context.Context, meta CacheMeta, key string, background bool, fn func(context.Context) error) error {
	ctx, span := in.tracer.StartSpan(ctx, meta, key, background)

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	in.tracer.EndSpan(span, err)
	in.metrics.RecordProduce(ctx, meta, duration, background, err)

	logger := in.logger.WithCache(meta)
	fields := []Field{
		F("key", key),
		F("background", background),
		F("duration_ms", float64(duration.Microseconds())/1000),
	}

	switch {
	case err != nil && background:
		logger.Warn(ctx, "background refresh failed", append(fields, F("error", err))...)
	case err != nil:
		logger.Debug(ctx, "producer failed", append(fields, F("error", err))...)
	default:
		logger.Debug(ctx, "producer completed", fields...)
	}

	return err
}

// Lookup records how a lookup was satisfied.
func (in *Instrumentation) Lookup(ctx context.Context, meta CacheMeta, outcome Outcome) {
	in.metrics.RecordLookup(ctx, meta, outcome)
}

// Evicted records capacity evictions.
func (in *Instrumentation) Evicted(ctx context.Context, meta CacheMeta, n int) {
	in.metrics.RecordEviction(ctx, meta, n)
}

// Expired records entries dropped after full expiry.
func (in *Instrumentation) Expired(ctx context.Context, meta CacheMeta, n int) {
	in.metrics.RecordExpired(ctx, meta, n)
}
