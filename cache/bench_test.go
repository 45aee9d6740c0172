package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// BenchmarkAsyncCache_GetOrSet_Hit measures the fresh-hit path.
func BenchmarkAsyncCache_GetOrSet_Hit(b *testing.B) {
	c := newTestCache[string](b, Config{DefaultTTL: time.Hour})
	ctx := context.Background()
	c.Set("key", "value")
	producer := constant("value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.GetOrSet(ctx, "key", producer)
	}
}

// BenchmarkAsyncCache_GetOrSet_Miss measures a producer call per lookup.
func BenchmarkAsyncCache_GetOrSet_Miss(b *testing.B) {
	c := newTestCache[string](b, Config{DefaultTTL: time.Hour})
	ctx := context.Background()
	producer := constant("value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.GetOrSet(ctx, "key", producer, WithForceRefresh())
	}
}

// BenchmarkAsyncCache_Get_Hit measures the read-only lookup.
func BenchmarkAsyncCache_Get_Hit(b *testing.B) {
	c := newTestCache[string](b, Config{DefaultTTL: time.Hour})
	c.Set("key", "value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get("key")
	}
}

// BenchmarkAsyncCache_Set_Evicting measures writes against a full cache.
func BenchmarkAsyncCache_Set_Evicting(b *testing.B) {
	c := newTestCache[string](b, Config{DefaultTTL: time.Hour, MaxEntries: 1024})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(fmt.Sprintf("key-%d", i), "value")
	}
}

// BenchmarkAsyncCache_Concurrent_ReadHeavy measures mixed concurrent operations.
func BenchmarkAsyncCache_Concurrent_ReadHeavy(b *testing.B) {
	c := newTestCache[string](b, Config{DefaultTTL: time.Hour})
	ctx := context.Background()
	producer := constant("value")

	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("key-%d", i), "value")
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprintf("key-%d", i%100)
			if i%4 == 0 {
				// 25% writes
				c.Set(key, "new-value")
			} else {
				// 75% reads
				_, _ = c.GetOrSet(ctx, key, producer)
			}
			i++
		}
	})
}

// BenchmarkAsyncCache_InvalidateBy measures a scoped invalidation scan.
func BenchmarkAsyncCache_InvalidateBy(b *testing.B) {
	c := newTestCache[string](b, Config{DefaultTTL: time.Hour})
	pred := Scope("feature", "p1")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for j := 0; j < 100; j++ {
			c.Set(Key("feature", fmt.Sprintf("p%d", j%4), fmt.Sprint(j)), "v")
		}
		b.StartTimer()
		_ = c.InvalidateBy(pred)
	}
}

// BenchmarkKey measures composing a scoped key.
func BenchmarkKey(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Key("feature", "proj1", "42")
	}
}
