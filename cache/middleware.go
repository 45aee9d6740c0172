package cache

import "context"

// Func is a computation memoized through an AsyncCache.
type Func[A, V any] func(ctx context.Context, arg A) (V, error)

// KeyFunc derives the cache key for an argument.
type KeyFunc[A any, K comparable] func(arg A) (K, error)

// BypassRule determines whether to skip caching for an argument.
// Returns true if caching should be skipped.
type BypassRule[A any] func(arg A) bool

// Middleware routes calls through an AsyncCache.
type Middleware[A any, K comparable, V any] struct {
	cache  *AsyncCache[K, V]
	keyFn  KeyFunc[A, K]
	bypass BypassRule[A]
	opts   []Option
}

// NewMiddleware creates a cache middleware. bypass may be nil; opts apply
// to every GetOrSet the middleware issues.
func NewMiddleware[A any, K comparable, V any](c *AsyncCache[K, V], keyFn KeyFunc[A, K], bypass BypassRule[A], opts ...Option) *Middleware[A, K, V] {
	return &Middleware[A, K, V]{
		cache:  c,
		keyFn:  keyFn,
		bypass: bypass,
		opts:   opts,
	}
}

// Execute runs fn for arg through the cache.
// Bypassed arguments and key derivation failures call fn directly.
// Concurrent calls for the same key share one fn invocation.
// Errors are NOT cached.
func (m *Middleware[A, K, V]) Execute(ctx context.Context, arg A, fn Func[A, V]) (V, error) {
	if m.bypass != nil && m.bypass(arg) {
		return fn(ctx, arg)
	}

	key, err := m.keyFn(arg)
	if err != nil {
		// Key generation failed - execute without caching
		return fn(ctx, arg)
	}

	return m.cache.GetOrSet(ctx, key, func(ctx context.Context) (V, error) {
		return fn(ctx, arg)
	}, m.opts...)
}

// Wrap returns fn routed through the middleware.
func (m *Middleware[A, K, V]) Wrap(fn Func[A, V]) Func[A, V] {
	return func(ctx context.Context, arg A) (V, error) {
		return m.Execute(ctx, arg, fn)
	}
}

// Memoize returns fn cached in c under the key derived by keyFn.
func Memoize[A any, K comparable, V any](c *AsyncCache[K, V], keyFn KeyFunc[A, K], fn Func[A, V], opts ...Option) Func[A, V] {
	return NewMiddleware(c, keyFn, nil, opts...).Wrap(fn)
}
