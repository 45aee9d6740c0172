package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/resultcache/observe"
)

// sweepLoop periodically removes fully expired entries until the cache
// is disposed.
func (c *AsyncCache[K, V]) sweepLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepCycle(ctx)
		}
	}
}

// sweepCycle runs one sweep. A panic is logged and the loop keeps going.
func (c *AsyncCache[K, V]) sweepCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(ctx, "sweep panicked", observe.F("panic", r))
		}
	}()

	if n := c.sweep(); n > 0 {
		c.log.Debug(ctx, "sweep removed expired entries", observe.F("count", n))
	}
}

// sweep deletes every fully expired entry and returns how many it removed.
// In-flight calls are left alone.
func (c *AsyncCache[K, V]) sweep() int {
	n := c.removeExpired()
	c.recordExpired(n)
	return n
}

func (c *AsyncCache[K, V]) removeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Clock()
	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if c.expiredLocked(el.Value.(*entry[K, V]), now) {
			c.removeLocked(el)
			n++
		}
		el = next
	}
	return n
}
