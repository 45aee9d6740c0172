// Package resilience provides guards for cache producers.
//
// The cache never cancels or times out a producer; callers that need a time
// limit, retries or load shedding wrap the producer before handing it to
// GetOrSet. Guards compose through an Executor, and Guard adapts an Executor
// to any cache.Producer:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 20, Burst: 5})),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 5})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(2*time.Second),
//	)
//
//	features, err := c.GetOrSet(ctx, key, resilience.Guard(exec, loadFeatures))
//
// Guards return their own sentinel errors (ErrCircuitOpen, ErrBulkheadFull,
// ErrRateLimitExceeded, ErrTimeout) and pass producer errors through
// unchanged, so errors.Is keeps working on the far side of the cache.
package resilience
