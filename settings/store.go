package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/resultcache/cache"
	"github.com/jonwraymond/resultcache/observe"
)

// Key is the cache key of the settings document.
const Key = "settings" + cache.KeySeparator + "global"

// Store serves settings from a stale-while-revalidate cache in front of a
// Source. Reads after the TTL return the cached document immediately and
// reload it in the background.
type Store struct {
	source Source
	cache  *cache.AsyncCache[string, Settings]
	log    observe.Logger

	updateMu sync.Mutex
}

// NewStore creates a Store. SWR is always enabled; other cache fields are
// used as given, with Name and Namespace defaulting to "settings".
func NewStore(source Source, cfg cache.Config) (*Store, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: nil source", cache.ErrInvalidConfig)
	}

	cfg.EnableSWR = true
	if cfg.Name == "" {
		cfg.Name = "settings"
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "settings"
	}

	c, err := cache.New[string, Settings](cfg)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = observe.NopLogger()
	}

	return &Store{source: source, cache: c, log: log}, nil
}

// Get returns the current settings. Concurrent cold reads share one load.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	v, err := s.cache.GetOrSet(ctx, Key, s.source.Load)
	if err != nil {
		return Settings{}, err
	}
	return v.Clone(), nil
}

// Update applies fn to a copy of the current settings, validates and saves
// the result, then replaces the cached document. Updates are serialized.
// A stale document is reloaded before fn sees it, never served.
func (s *Store) Update(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	sink, ok := s.source.(Sink)
	if !ok {
		return Settings{}, ErrReadOnly
	}

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	cur, err := s.cache.GetOrSet(ctx, Key, s.source.Load, cache.WithSWR(false))
	if err != nil {
		return Settings{}, err
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return Settings{}, err
	}
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	if err := sink.Save(ctx, next); err != nil {
		return Settings{}, err
	}

	// A load that read the file before Save may still be in flight. Join it
	// so its result lands before ours.
	_, _ = s.cache.GetOrSet(context.WithoutCancel(ctx), Key, func(context.Context) (Settings, error) {
		return next, nil
	}, cache.WithForceRefresh())
	s.cache.Set(Key, next)

	s.log.Info(ctx, "settings updated", observe.F("theme", next.Theme), observe.F("default_model", next.DefaultModel))
	return next.Clone(), nil
}

// Reload reads the source again, bypassing the cached document. Reloads
// requested while one is running share its result. A caller whose ctx ends
// stops waiting; the reload itself continues.
func (s *Store) Reload(ctx context.Context) (Settings, error) {
	v, err := s.cache.GetOrSet(ctx, Key, s.source.Load, cache.WithForceRefresh())
	if err != nil {
		return Settings{}, err
	}
	return v.Clone(), nil
}

// Invalidate drops the cached document so the next Get loads it again.
// It reports whether a document was cached.
func (s *Store) Invalidate() bool {
	return s.cache.Delete(Key)
}

// Stats returns the underlying cache stats.
func (s *Store) Stats() cache.Stats {
	return s.cache.Stats()
}

// Close disposes the cache. Later calls return cache.ErrClosed.
func (s *Store) Close() error {
	return s.cache.Close()
}
