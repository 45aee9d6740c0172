package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/resultcache/cache"
)

// Executor composes multiple resilience patterns.
type Executor struct {
	circuitBreaker *CircuitBreaker
	retry          *Retry
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithRateLimiter adds rate limiting to the executor.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.rateLimiter = rl }
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithTimeout bounds each attempt to timeout.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout}) }
}

// Execute runs op through the configured guards, outermost first:
// rate limiter, bulkhead, circuit breaker, retry, timeout.
// Each retry attempt gets its own timeout; the breaker sees one outcome
// per Execute.
func (e *Executor) Execute(ctx context.Context, op Operation) error {
	execute := op

	if e.timeout != nil {
		execute = wrap(execute, e.timeout.Execute)
	}
	if e.retry != nil {
		execute = wrap(execute, e.retry.Execute)
	}
	if e.circuitBreaker != nil {
		execute = wrap(execute, e.circuitBreaker.Execute)
	}
	if e.bulkhead != nil {
		execute = wrap(execute, e.bulkhead.Execute)
	}
	if e.rateLimiter != nil {
		execute = wrap(execute, e.rateLimiter.Execute)
	}

	return execute(ctx)
}

func wrap(inner Operation, guard func(context.Context, Operation) error) Operation {
	return func(ctx context.Context) error {
		return guard(ctx, inner)
	}
}

// Guard returns producer run through e. Successful values pass through;
// errors are those of the producer or of the guard that rejected it.
func Guard[V any](e *Executor, producer cache.Producer[V]) cache.Producer[V] {
	return func(ctx context.Context) (V, error) {
		var (
			mu  sync.Mutex
			out V
		)

		err := e.Execute(ctx, func(ctx context.Context) error {
			v, err := producer(ctx)
			if err == nil {
				mu.Lock()
				out = v
				mu.Unlock()
			}
			return err
		})
		if err != nil {
			var zero V
			return zero, err
		}

		mu.Lock()
		defer mu.Unlock()
		return out, nil
	}
}
