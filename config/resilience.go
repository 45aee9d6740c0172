package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/resultcache/resilience"
)

// ResilienceConfig configures the guards around repository calls. A zero
// field disables its guard.
type ResilienceConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxFailures   int           `mapstructure:"max_failures"`
	ResetTimeout  time.Duration `mapstructure:"reset_timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueWait     time.Duration `mapstructure:"queue_wait"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// Validate reports the first negative field.
func (r ResilienceConfig) Validate() error {
	if r.Timeout < 0 || r.RetryDelay < 0 || r.ResetTimeout < 0 || r.QueueWait < 0 {
		return fmt.Errorf("%w: resilience durations must not be negative", ErrInvalidConfig)
	}
	if r.MaxAttempts < 0 || r.MaxFailures < 0 || r.MaxConcurrent < 0 || r.Burst < 0 || r.RatePerSecond < 0 {
		return fmt.Errorf("%w: resilience limits must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Executor builds the guards. expected reports errors that answer the
// request, such as not-found; they are neither retried nor counted by the
// circuit breaker. onStateChange may be nil.
func (r ResilienceConfig) Executor(name string, expected func(error) bool, onStateChange func(name string, from, to resilience.State)) *resilience.Executor {
	if expected == nil {
		expected = func(error) bool { return false }
	}

	var opts []resilience.ExecutorOption

	if r.RatePerSecond > 0 {
		opts = append(opts, resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        r.RatePerSecond,
			Burst:       r.Burst,
			WaitOnLimit: true,
			MaxWait:     r.QueueWait,
		})))
	}
	if r.MaxConcurrent > 0 {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: r.MaxConcurrent,
			MaxWait:       r.QueueWait,
		})))
	}
	if r.MaxFailures > 0 {
		opts = append(opts, resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:          name,
			MaxFailures:   r.MaxFailures,
			ResetTimeout:  r.ResetTimeout,
			OnStateChange: onStateChange,
			IsFailure: func(err error) bool {
				return err != nil && !expected(err) && !errors.Is(err, context.Canceled)
			},
		})))
	}
	if r.MaxAttempts > 1 {
		opts = append(opts, resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  r.MaxAttempts,
			InitialDelay: r.RetryDelay,
			Jitter:       true,
			RetryIf: func(err error) bool {
				return !expected(err) && !resilience.IsRejection(err) && !errors.Is(err, context.Canceled)
			},
		})))
	}
	if r.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(r.Timeout))
	}

	return resilience.NewExecutor(opts...)
}
