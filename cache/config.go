package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/resultcache/observe"
)

// DefaultTTL is used when Config.DefaultTTL is zero.
const DefaultTTL = 60 * time.Second

// Config configures an AsyncCache. It is copied by New and never changes
// afterwards.
type Config struct {
	// Name identifies the instance in logs, metrics and spans.
	// Defaults to "cache-" plus a short random suffix.
	Name string

	// Namespace names the owning subsystem, e.g. "settings" or "board".
	Namespace string

	// DefaultTTL is the TTL used when a call or Set gives none.
	// Zero means DefaultTTL (60s).
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// EnableSWR serves stale entries while a background refresh runs.
	EnableSWR bool

	// SWRWindow is how long past its TTL a stale entry remains servable.
	// Zero means the effective DefaultTTL, not "no window": to stop serving
	// stale entries, leave EnableSWR off.
	SWRWindow time.Duration

	// CleanupInterval is the period of the background sweep.
	// If zero, entries only expire lazily on read.
	CleanupInterval time.Duration

	// MaxEntries bounds the number of stored entries. Zero is unlimited.
	MaxEntries int

	// Logger receives cache lifecycle logs. Defaults to the
	// Instrumentation logger.
	Logger observe.Logger

	// Instrumentation records lookups and producer calls. Defaults to a no-op.
	Instrumentation *observe.Instrumentation

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns a Config with a 60s TTL and SWR disabled.
func DefaultConfig() Config {
	return Config{DefaultTTL: DefaultTTL}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.DefaultTTL < 0:
		return fmt.Errorf("%w: DefaultTTL must not be negative, got %s", ErrInvalidConfig, c.DefaultTTL)
	case c.MaxTTL < 0:
		return fmt.Errorf("%w: MaxTTL must not be negative, got %s", ErrInvalidConfig, c.MaxTTL)
	case c.SWRWindow < 0:
		return fmt.Errorf("%w: SWRWindow must not be negative, got %s", ErrInvalidConfig, c.SWRWindow)
	case c.CleanupInterval < 0:
		return fmt.Errorf("%w: CleanupInterval must not be negative, got %s", ErrInvalidConfig, c.CleanupInterval)
	case c.MaxEntries < 0:
		return fmt.Errorf("%w: MaxEntries must not be negative, got %d", ErrInvalidConfig, c.MaxEntries)
	case c.MaxTTL > 0 && c.MaxTTL < c.DefaultTTL:
		return fmt.Errorf("%w: MaxTTL %s is smaller than DefaultTTL %s", ErrInvalidConfig, c.MaxTTL, c.DefaultTTL)
	}
	return nil
}

// withDefaults fills zero fields. Negative values are left for Validate.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "cache-" + uuid.NewString()[:8]
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.SWRWindow == 0 {
		c.SWRWindow = c.DefaultTTL
	}
	if c.Instrumentation == nil {
		c.Instrumentation = observe.NewInstrumentation(nil, nil, c.Logger)
	}
	if c.Logger == nil {
		c.Logger = c.Instrumentation.Logger()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (c Config) EffectiveTTL(override time.Duration) time.Duration {
	// Use default if no override (or negative override)
	ttl := override
	if ttl <= 0 {
		ttl = c.DefaultTTL
	}

	// Clamp to MaxTTL if set
	if c.MaxTTL > 0 && ttl > c.MaxTTL {
		ttl = c.MaxTTL
	}

	return ttl
}

// retention is how long past cachedAt an entry with the given ttl is kept.
func (c Config) retention(ttl time.Duration) time.Duration {
	if c.EnableSWR {
		return ttl + c.SWRWindow
	}
	return ttl
}
