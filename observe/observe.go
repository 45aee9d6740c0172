package observe

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/resultcache/observe/exporters"
)

// Scope is the instrumentation scope of every tracer and meter the Observer
// hands out.
const Scope = "github.com/jonwraymond/resultcache"

// Observer owns the telemetry providers of one process. Caches receive its
// tracer, meter and logger through InstrumentationFromObserver.
//
// Observer is safe for concurrent use. Shutdown flushes exporters, honors
// ctx and may be called more than once.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger
	Shutdown(ctx context.Context) error
}

type observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger

	// stops flush and close providers, in the order they were started.
	stops []func(context.Context) error
}

// NewObserver validates cfg and starts the enabled signals. Disabled signals
// get no-op implementations. The SDK providers are also installed as the
// otel globals.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	o := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(Scope),
		meter:  noop.NewMeterProvider().Meter(Scope),
		logger: NopLogger(),
	}
	if cfg.Tracing.Enabled {
		if err := o.startTracing(ctx, cfg.Tracing, res); err != nil {
			return nil, errors.Join(err, o.Shutdown(ctx))
		}
	}
	if cfg.Metrics.Enabled {
		if err := o.startMetrics(ctx, cfg.Metrics, res); err != nil {
			return nil, errors.Join(err, o.Shutdown(ctx))
		}
	}
	if cfg.Logging.Enabled {
		o.logger = NewLogger(cfg.Logging.Level)
	}
	return o, nil
}

func (o *observer) startTracing(ctx context.Context, cfg TracingConfig, res *resource.Resource) error {
	exp, err := exporters.NewTracingExporter(ctx, cfg.Exporter, nil)
	if err != nil {
		return fmt.Errorf("observe: tracing: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SamplePct))),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)
	o.tracer = tp.Tracer(Scope)
	o.stops = append(o.stops, tp.Shutdown)
	return nil
}

func (o *observer) startMetrics(ctx context.Context, cfg MetricsConfig, res *resource.Resource) error {
	reader, err := exporters.NewMetricsReader(ctx, cfg.Exporter, nil)
	if err != nil {
		return fmt.Errorf("observe: metrics: %w", err)
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	o.meter = mp.Meter(Scope)
	o.stops = append(o.stops, mp.Shutdown)
	return nil
}

// sampler keeps the given fraction of root spans. Child spans follow their
// parent.
func sampler(frac float64) sdktrace.Sampler {
	switch {
	case frac >= MaxSamplePct:
		return sdktrace.AlwaysSample()
	case frac <= MinSamplePct:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(frac)
	}
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }
func (o *observer) Meter() metric.Meter  { return o.meter }
func (o *observer) Logger() Logger       { return o.logger }

// Shutdown stops providers in reverse start order and joins their errors.
// SDK providers ignore a second Shutdown.
func (o *observer) Shutdown(ctx context.Context) error {
	var errs []error
	for _, stop := range slices.Backward(o.stops) {
		errs = append(errs, stop(ctx))
	}
	return errors.Join(errs...)
}
