package health

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/resultcache/cache"
)

// StatsSource is anything that reports cache stats. *cache.AsyncCache
// satisfies it for every key and value type.
type StatsSource interface {
	Stats() cache.Stats
}

// StatsFunc adapts a function to StatsSource.
type StatsFunc func() cache.Stats

// Stats calls f.
func (f StatsFunc) Stats() cache.Stats { return f() }

// CacheCheckerConfig configures a CacheChecker.
type CacheCheckerConfig struct {
	// MaxRefreshErrorRatio is the share of failed background refreshes,
	// measured since the previous check, above which the cache is degraded.
	// Default: 0.5
	MaxRefreshErrorRatio float64

	// MinRefreshes is the number of refreshes a window needs before the
	// ratio is considered.
	// Default: 4
	MinRefreshes uint64
}

// CacheChecker reports the health of one result cache.
//
// Unhealthy once the cache is disposed. Degraded when background refreshes
// fail too often, or when the cache is full and evicted entries since the
// previous check. Counters are compared against the previous check, so a
// burst of failures stops degrading the status once refreshes succeed again.
type CacheChecker struct {
	name   string
	source StatsSource
	cfg    CacheCheckerConfig

	mu   sync.Mutex
	prev cache.Stats
}

// NewCacheChecker creates a checker over source.
func NewCacheChecker(name string, source StatsSource, config ...CacheCheckerConfig) (*CacheChecker, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	var cfg CacheCheckerConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.MaxRefreshErrorRatio <= 0 || cfg.MaxRefreshErrorRatio > 1 {
		cfg.MaxRefreshErrorRatio = 0.5
	}
	if cfg.MinRefreshes == 0 {
		cfg.MinRefreshes = 4
	}

	return &CacheChecker{name: name, source: source, cfg: cfg}, nil
}

// Name returns the checker name.
func (c *CacheChecker) Name() string {
	return c.name
}

// Check reads the current stats and classifies them.
func (c *CacheChecker) Check(_ context.Context) Result {
	s := c.source.Stats()

	c.mu.Lock()
	prev := c.prev
	c.prev = s
	c.mu.Unlock()

	refreshes := s.Refreshes - min(prev.Refreshes, s.Refreshes)
	refreshErrors := s.RefreshErrors - min(prev.RefreshErrors, s.RefreshErrors)
	evictions := s.Evictions - min(prev.Evictions, s.Evictions)

	details := map[string]any{
		"entries":             s.Entries,
		"in_flight":           s.InFlight,
		"capacity":            s.Capacity,
		"hit_ratio":           s.HitRatio(),
		"refresh_error_ratio": s.RefreshErrorRatio(),
		"evictions":           s.Evictions,
	}

	switch {
	case s.Closed:
		return Unhealthy("cache disposed", cache.ErrClosed).WithDetails(details)

	case refreshes >= c.cfg.MinRefreshes &&
		float64(refreshErrors)/float64(refreshes) > c.cfg.MaxRefreshErrorRatio:
		msg := fmt.Sprintf("%d of %d background refreshes failed", refreshErrors, refreshes)
		return Degraded(msg).WithDetails(details)

	case s.Capacity > 0 && s.Entries >= s.Capacity && evictions > 0:
		msg := fmt.Sprintf("at capacity, %d entries evicted", evictions)
		return Degraded(msg).WithDetails(details)
	}

	return Healthy("serving").WithDetails(details)
}
