package cache

import "sync/atomic"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits           uint64 // fresh entries served
	Misses         uint64 // lookups that started a producer call
	StaleHits      uint64 // stale entries served under SWR
	Joins          uint64 // lookups that joined an in-flight call
	ProducerCalls  uint64 // producer invocations, foreground and background
	ProducerErrors uint64 // failed foreground producer invocations
	Refreshes      uint64 // background refreshes started
	RefreshErrors  uint64 // failed background refreshes
	Evictions      uint64
	Expired        uint64 // fully expired entries removed on read or sweep
	Invalidated    uint64 // entries removed by Delete or InvalidateBy

	Entries  int
	InFlight int
	Capacity int // Config.MaxEntries, 0 when unbounded
	Closed   bool
}

// HitRatio is the share of lookups answered from storage, fresh or stale.
func (s Stats) HitRatio() float64 {
	served := s.Hits + s.StaleHits
	total := served + s.Misses + s.Joins
	if total == 0 {
		return 0
	}
	return float64(served) / float64(total)
}

// RefreshErrorRatio is the share of background refreshes that failed.
func (s Stats) RefreshErrorRatio() float64 {
	if s.Refreshes == 0 {
		return 0
	}
	return float64(s.RefreshErrors) / float64(s.Refreshes)
}

type counters struct {
	hits           atomic.Uint64
	misses         atomic.Uint64
	staleHits      atomic.Uint64
	joins          atomic.Uint64
	producerCalls  atomic.Uint64
	producerErrors atomic.Uint64
	refreshes      atomic.Uint64
	refreshErrors  atomic.Uint64
	evictions      atomic.Uint64
	expired        atomic.Uint64
	invalidated    atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		StaleHits:      c.staleHits.Load(),
		Joins:          c.joins.Load(),
		ProducerCalls:  c.producerCalls.Load(),
		ProducerErrors: c.producerErrors.Load(),
		Refreshes:      c.refreshes.Load(),
		RefreshErrors:  c.refreshErrors.Load(),
		Evictions:      c.evictions.Load(),
		Expired:        c.expired.Load(),
		Invalidated:    c.invalidated.Load(),
	}
}
