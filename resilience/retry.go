package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// BackoffStrategy shapes the wait between attempts of a failing producer.
type BackoffStrategy int

const (
	BackoffExponential BackoffStrategy = iota // InitialDelay * Multiplier^(n-1)
	BackoffLinear                             // InitialDelay * n
	BackoffConstant                           // InitialDelay
)

// RetryConfig configures Retry. Zero fields take the defaults noted.
type RetryConfig struct {
	MaxAttempts  int           // attempts including the first; default 3
	InitialDelay time.Duration // wait after the first failure; default 100ms
	MaxDelay     time.Duration // cap on any single wait; default 30s
	Multiplier   float64       // exponential growth factor; default 2
	Strategy     BackoffStrategy

	// Jitter stretches each wait by a random amount below 25%, so producers
	// that failed together do not retry together.
	Jitter bool

	// RetryIf reports whether err is worth another attempt. The default
	// retries everything except guard rejections and a caller that is gone.
	RetryIf func(err error) bool

	// OnRetry runs after failed attempt n, before waiting delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.RetryIf == nil {
		c.RetryIf = func(err error) bool { return !IsRejection(err) && !isCallerGone(err) }
	}
	return c
}

// Retry re-runs a failing producer with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry returns a Retry for config with defaults applied.
func NewRetry(config RetryConfig) *Retry {
	return &Retry{config: config.withDefaults()}
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig { return r.config }

// Execute runs op until it succeeds, RetryIf declines the error or the
// attempts run out. The last error of op comes back unchanged; a ctx that
// ends during a wait returns ctx.Err().
func (r *Retry) Execute(ctx context.Context, op Operation) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil || attempt >= r.config.MaxAttempts || !r.config.RetryIf(err) {
			return err
		}

		d := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, d)
		}
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

// delay is the wait after failed attempt n, capped at MaxDelay before
// jitter is added.
func (r *Retry) delay(n int) time.Duration {
	c := r.config
	var d time.Duration
	switch c.Strategy {
	case BackoffConstant:
		d = c.InitialDelay
	case BackoffLinear:
		d = c.InitialDelay * time.Duration(n)
	default:
		f := float64(c.InitialDelay)
		for i := 1; i < n && f < float64(c.MaxDelay); i++ {
			f *= c.Multiplier
		}
		d = time.Duration(min(f, float64(c.MaxDelay)))
	}
	d = min(d, c.MaxDelay)

	if c.Jitter && d >= 4 {
		// #nosec G404 -- timing variance, not security.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
