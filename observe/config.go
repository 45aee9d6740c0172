package observe

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jonwraymond/resultcache/observe/exporters"
)

var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: sample fraction must be within [0, 1]")
	ErrInvalidTracingExporter = errors.New("observe: unsupported tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unsupported metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: unsupported log level")
)

// Bounds of TracingConfig.SamplePct.
const (
	MinSamplePct = 0.0
	MaxSamplePct = 1.0
)

// Accepted names per signal. The empty string selects the signal's default.
var (
	ValidTracingExporters = []string{exporters.OTLP, exporters.Stdout, exporters.None, ""}
	ValidMetricsExporters = []string{exporters.OTLP, exporters.Prometheus, exporters.Stdout, exporters.None, ""}
	ValidLogLevels        = []string{"debug", "info", "warn", "error", ""}
)

// Config selects where cache telemetry goes. ServiceName labels every span,
// metric and log record.
type Config struct {
	ServiceName string
	Version     string
	Tracing     TracingConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

// TracingConfig controls the spans emitted around producer calls.
type TracingConfig struct {
	Enabled   bool
	Exporter  string
	SamplePct float64 // fraction of root spans kept
}

// MetricsConfig controls the lookup and producer instruments.
type MetricsConfig struct {
	Enabled  bool
	Exporter string
}

// LoggingConfig controls the JSON logger handed to caches.
type LoggingConfig struct {
	Enabled bool
	Level   string
}

// Validate reports the first invalid setting. Disabled signals are not
// checked.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.Tracing.Enabled {
		if err := oneOf(ErrInvalidTracingExporter, ValidTracingExporters, c.Tracing.Exporter); err != nil {
			return err
		}
		if p := c.Tracing.SamplePct; p < MinSamplePct || p > MaxSamplePct {
			return fmt.Errorf("%w: %g", ErrInvalidSamplePct, p)
		}
	}
	if c.Metrics.Enabled {
		if err := oneOf(ErrInvalidMetricsExporter, ValidMetricsExporters, c.Metrics.Exporter); err != nil {
			return err
		}
	}
	if c.Logging.Enabled {
		return oneOf(ErrInvalidLogLevel, ValidLogLevels, c.Logging.Level)
	}
	return nil
}

func oneOf(sentinel error, allowed []string, got string) error {
	if slices.Contains(allowed, got) {
		return nil
	}
	return fmt.Errorf("%w: %q (want one of %q)", sentinel, got, allowed[:len(allowed)-1])
}
