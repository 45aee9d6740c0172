package cache

import "time"

type entry[K comparable, V any] struct {
	key      K
	value    V
	cachedAt time.Time
	ttl      time.Duration
}

func (e *entry[K, V]) age(now time.Time) time.Duration {
	return now.Sub(e.cachedAt)
}

// fresh reports whether the entry is within its TTL.
func (e *entry[K, V]) fresh(now time.Time) bool {
	return e.age(now) <= e.ttl
}

// within reports whether the entry is no older than ttl+window.
func (e *entry[K, V]) within(now time.Time, window time.Duration) bool {
	return e.age(now) <= e.ttl+window
}
