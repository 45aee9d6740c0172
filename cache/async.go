package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonwraymond/resultcache/observe"
)

// AsyncCache caches the results of producer functions.
//
// Contract:
//   - Concurrency: safe for concurrent use. The store and the in-flight
//     registry share one mutex, so "check store, check in-flight, register"
//     is atomic and at most one producer runs per key.
//   - Context: GetOrSet honors ctx only while waiting; producers are never
//     cancelled by the cache.
//   - Errors: producer errors are returned unwrapped; nothing is stored.
//   - Ownership: values are returned as stored. Callers must not mutate
//     shared values such as slices or maps.
type AsyncCache[K comparable, V any] struct {
	cfg  Config
	meta observe.CacheMeta
	in   *observe.Instrumentation
	log  observe.Logger

	mu      sync.Mutex
	entries map[K]*list.Element // element values are *entry[K, V]
	order   *list.List          // insertion order, oldest first
	calls   map[K]*call[V]
	closed  bool

	stats counters

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an AsyncCache. Zero config fields take their documented
// defaults; invalid values return an error wrapping ErrInvalidConfig.
// A positive CleanupInterval starts a sweep goroutine that runs until
// Dispose.
func New[K comparable, V any](cfg Config) (*AsyncCache[K, V], error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	meta := observe.CacheMeta{Namespace: cfg.Namespace, Name: cfg.Name}
	c := &AsyncCache[K, V]{
		cfg:     cfg,
		meta:    meta,
		in:      cfg.Instrumentation,
		log:     cfg.Logger.WithCache(meta),
		entries: make(map[K]*list.Element),
		order:   list.New(),
		calls:   make(map[K]*call[V]),
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	if cfg.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop(ctx)
	}

	return c, nil
}

// Name returns the instance name.
func (c *AsyncCache[K, V]) Name() string {
	return c.cfg.Name
}

// GetOrSet returns the value for key, calling producer when no servable
// entry exists.
//
// In priority order: ForceRefresh goes straight to the deduplicated fetch.
// A fresh entry is returned with no side effects. A stale entry is returned
// when SWR applies and it is within ttl+SWRWindow, and one background
// refresh is started unless a call for key is already running. Otherwise
// the caller joins the in-flight call for key or starts one.
func (c *AsyncCache[K, V]) GetOrSet(ctx context.Context, key K, producer Producer[V], opts ...Option) (V, error) {
	var zero V
	if producer == nil {
		return zero, ErrNilProducer
	}

	o := resolveOptions(opts)
	ttl := c.cfg.EffectiveTTL(o.TTL)
	swr := o.SWR.resolve(c.cfg.EnableSWR)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return zero, ErrClosed
	}

	if !o.ForceRefresh {
		if el, ok := c.entries[key]; ok {
			e := el.Value.(*entry[K, V])
			now := c.cfg.Clock()

			switch {
			case e.fresh(now):
				v := e.value
				c.mu.Unlock()
				c.stats.hits.Add(1)
				c.in.Lookup(ctx, c.meta, observe.OutcomeHit)
				return v, nil

			case swr && e.within(now, c.cfg.SWRWindow):
				v := e.value
				c.refreshLocked(ctx, key, producer, ttl)
				c.mu.Unlock()
				c.stats.staleHits.Add(1)
				c.in.Lookup(ctx, c.meta, observe.OutcomeStale)
				return v, nil

			case c.expiredLocked(e, now):
				c.removeLocked(el)
				c.stats.expired.Add(1)
				c.in.Expired(ctx, c.meta, 1)
			}
		}
	}

	cl, joined := c.fetchLocked(ctx, key, producer, ttl, false)
	c.mu.Unlock()

	if joined {
		c.stats.joins.Add(1)
		c.in.Lookup(ctx, c.meta, observe.OutcomeJoin)
	} else {
		c.stats.misses.Add(1)
		c.in.Lookup(ctx, c.meta, observe.OutcomeMiss)
	}

	return cl.wait(ctx)
}

// fetchLocked joins the in-flight call for key or registers and starts a
// new one. It reports whether an existing call was joined.
func (c *AsyncCache[K, V]) fetchLocked(ctx context.Context, key K, producer Producer[V], ttl time.Duration, background bool) (*call[V], bool) {
	if cl, ok := c.calls[key]; ok {
		return cl, true
	}

	cl := newCall[V]()
	c.calls[key] = cl
	go c.run(context.WithoutCancel(ctx), key, cl, producer, ttl, background)
	return cl, false
}

// refreshLocked starts a background refresh unless a call for key is
// already running.
func (c *AsyncCache[K, V]) refreshLocked(ctx context.Context, key K, producer Producer[V], ttl time.Duration) {
	if _, running := c.calls[key]; running {
		return
	}
	c.stats.refreshes.Add(1)
	c.fetchLocked(ctx, key, producer, ttl, true)
}

// run invokes producer, stores a successful result and settles cl.
func (c *AsyncCache[K, V]) run(ctx context.Context, key K, cl *call[V], producer Producer[V], ttl time.Duration, background bool) {
	var val V
	err := c.in.Produce(ctx, c.meta, keyString(key), background, func(ctx context.Context) error {
		var err error
		val, err = invoke(ctx, producer)
		return err
	})

	c.stats.producerCalls.Add(1)
	if err != nil {
		if background {
			c.stats.refreshErrors.Add(1)
		} else {
			c.stats.producerErrors.Add(1)
		}
		if errors.Is(err, ErrProducerPanic) {
			c.log.Error(ctx, "producer panicked", observe.F("key", keyString(key)), observe.F("error", err))
		}
	}

	evicted := 0
	c.mu.Lock()
	if c.calls[key] == cl {
		delete(c.calls, key)
	}
	if err == nil && !c.closed {
		evicted = c.storeLocked(key, val, ttl)
	}
	c.mu.Unlock()

	c.recordEvicted(evicted)
	cl.settle(val, err)
}

// Get returns the value for key if it is present and fresh. A fully
// expired entry is deleted. Get never calls a producer.
func (c *AsyncCache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	now := c.cfg.Clock()
	if e.fresh(now) {
		v := e.value
		c.mu.Unlock()
		return v, true
	}

	expired := c.expiredLocked(e, now)
	if expired {
		c.removeLocked(el)
	}
	c.mu.Unlock()

	if expired {
		c.recordExpired(1)
	}
	return zero, false
}

// Has reports whether Get would return a value.
func (c *AsyncCache[K, V]) Has(key K) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores value under key with the default TTL.
func (c *AsyncCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, 0)
}

// SetWithTTL stores value under key. A non-positive ttl means the default
// TTL; ttl is clamped to MaxTTL. Set on a disposed cache is ignored.
func (c *AsyncCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	ttl = c.cfg.EffectiveTTL(ttl)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	evicted := c.storeLocked(key, value, ttl)
	c.mu.Unlock()

	c.recordEvicted(evicted)
}

// Delete removes the entry for key and reports whether one existed.
// An in-flight call for key still completes and may store its result.
func (c *AsyncCache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	el, ok := c.entries[key]
	if ok {
		c.removeLocked(el)
	}
	c.mu.Unlock()

	if ok {
		c.stats.invalidated.Add(1)
	}
	return ok
}

// InvalidateBy deletes every stored key for which pred returns true and
// returns the count. pred runs without the cache lock, so it may call back
// into the cache; keys stored while it runs are not examined. In-flight
// calls are not touched.
func (c *AsyncCache[K, V]) InvalidateBy(pred func(K) bool) int {
	if pred == nil {
		return 0
	}

	matched := slices.DeleteFunc(c.Keys(), func(k K) bool { return !pred(k) })
	if len(matched) == 0 {
		return 0
	}

	c.mu.Lock()
	n := 0
	for _, k := range matched {
		if el, ok := c.entries[k]; ok {
			c.removeLocked(el)
			n++
		}
	}
	c.mu.Unlock()

	c.stats.invalidated.Add(uint64(n))
	return n
}

// Clear drops every entry and every in-flight registration. Running
// producers are not cancelled; their waiters still receive the result and
// a successful result is stored.
func (c *AsyncCache[K, V]) Clear() {
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()
}

func (c *AsyncCache[K, V]) clearLocked() {
	clear(c.entries)
	c.order.Init()
	clear(c.calls)
}

// Dispose stops the sweep goroutine, waits for it to exit and clears the
// cache. Later GetOrSet calls return ErrClosed. Dispose is idempotent.
func (c *AsyncCache[K, V]) Dispose() {
	c.mu.Lock()
	first := !c.closed
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.Clear()

	if first {
		c.log.Debug(context.Background(), "cache disposed")
	}
}

// Close disposes the cache. It always returns nil.
func (c *AsyncCache[K, V]) Close() error {
	c.Dispose()
	return nil
}

// Len returns the number of stored entries, including stale ones.
func (c *AsyncCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// InFlight returns the number of registered producer calls.
func (c *AsyncCache[K, V]) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// Keys returns the stored keys, oldest inserted first.
func (c *AsyncCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.entries))
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Stats returns a snapshot of the cache counters and sizes.
func (c *AsyncCache[K, V]) Stats() Stats {
	s := c.stats.snapshot()

	c.mu.Lock()
	s.Entries = len(c.entries)
	s.InFlight = len(c.calls)
	s.Closed = c.closed
	c.mu.Unlock()

	s.Capacity = c.cfg.MaxEntries
	return s
}

// storeLocked writes an entry, evicting first when a new key would exceed
// MaxEntries. Overwriting keeps the key's insertion position. It returns
// the number of evicted entries.
func (c *AsyncCache[K, V]) storeLocked(key K, value V, ttl time.Duration) int {
	now := c.cfg.Clock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.cachedAt = now
		e.ttl = ttl
		return 0
	}

	evicted := 0
	for c.cfg.MaxEntries > 0 && len(c.entries) >= c.cfg.MaxEntries {
		c.removeLocked(c.order.Front())
		evicted++
	}

	c.entries[key] = c.order.PushBack(&entry[K, V]{
		key:      key,
		value:    value,
		cachedAt: now,
		ttl:      ttl,
	})
	return evicted
}

func (c *AsyncCache[K, V]) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*entry[K, V])
	delete(c.entries, e.key)
}

// expiredLocked reports whether e is past its retention window and can no
// longer be served at all.
func (c *AsyncCache[K, V]) expiredLocked(e *entry[K, V], now time.Time) bool {
	return e.age(now) > c.cfg.retention(e.ttl)
}

func (c *AsyncCache[K, V]) recordEvicted(n int) {
	if n <= 0 {
		return
	}
	c.stats.evictions.Add(uint64(n))
	c.in.Evicted(context.Background(), c.meta, n)
	c.log.Debug(context.Background(), "evicted oldest entries", observe.F("count", n))
}

func (c *AsyncCache[K, V]) recordExpired(n int) {
	if n <= 0 {
		return
	}
	c.stats.expired.Add(uint64(n))
	c.in.Expired(context.Background(), c.meta, n)
}

// keyString renders a key for logs and span attributes.
func keyString[K comparable](key K) string {
	if s, ok := any(key).(string); ok {
		return s
	}
	return fmt.Sprint(key)
}
