package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonwraymond/resultcache/board"
	"github.com/jonwraymond/resultcache/cache"
	"github.com/jonwraymond/resultcache/config"
	"github.com/jonwraymond/resultcache/health"
	"github.com/jonwraymond/resultcache/observe"
	"github.com/jonwraymond/resultcache/resilience"
	"github.com/jonwraymond/resultcache/server"
	"github.com/jonwraymond/resultcache/settings"
)

// app owns everything serve builds, in the order it must be torn down.
type app struct {
	obs     observe.Observer
	log     observe.Logger
	store   *settings.Store
	watcher *settings.Watcher
	board   *board.Service
	health  *health.Aggregator
	server  *server.Server
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{log: observe.NopLogger()}
	if err := a.build(ctx, cfg); err != nil {
		_ = a.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	a.log.Info(ctx, "resultcache ready",
		observe.F("version", version),
		observe.F("settings_path", cfg.Settings.Path),
		observe.F("board_root", cfg.Board.Root))
	return a, nil
}

func (a *app) build(ctx context.Context, cfg config.Config) error {
	var err error
	a.obs, err = observe.NewObserver(ctx, cfg.Observe.ToObserve(version))
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	a.log = a.obs.Logger()

	inst, err := observe.InstrumentationFromObserver(a.obs)
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	cacheConfig := func(c config.CacheConfig, name, namespace string) cache.Config {
		cc := c.ToCache(name, namespace)
		cc.Logger = a.log
		cc.Instrumentation = inst
		return cc
	}

	a.store, err = settings.NewStore(settings.NewFileSource(cfg.Settings.Path),
		cacheConfig(cfg.Settings.Cache, "settings", "settings"))
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if cfg.Settings.Watch {
		if err := os.MkdirAll(filepath.Dir(cfg.Settings.Path), 0o755); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
		a.watcher, err = a.store.Watch(cfg.Settings.Path, cfg.Settings.Debounce)
		if err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}

	exec := cfg.Board.Resilience.Executor("board", board.IsClientError,
		func(name string, from, to resilience.State) {
			a.log.Warn(context.Background(), "circuit breaker state changed",
				observe.F("breaker", name), observe.F("from", from.String()), observe.F("to", to.String()))
		})
	repo := board.Guarded(board.NewDirRepository(cfg.Board.Root), exec)
	a.board, err = board.NewService(repo, cacheConfig(cfg.Board.Cache, "board", "board"))
	if err != nil {
		return fmt.Errorf("board: %w", err)
	}

	a.health, err = newHealth(cfg.Server, a.store, a.board)
	if err != nil {
		return err
	}

	a.server, err = server.New(cfg.Server, server.Options{
		Settings: a.store,
		Board:    a.board,
		Health:   a.health,
		Logger:   a.log,
	})
	return err
}

func newHealth(cfg config.ServerConfig, store *settings.Store, svc *board.Service) (*health.Aggregator, error) {
	agg := health.NewAggregator(health.AggregatorConfig{CheckTimeout: cfg.HealthTimeout})

	sources := []struct {
		name   string
		source health.StatsSource
	}{
		{"settings", store},
		{"board.features", health.StatsFunc(svc.ListStats)},
		{"board.feature", health.StatsFunc(svc.FeatureStats)},
	}
	for _, s := range sources {
		checker, err := health.NewCacheChecker(s.name, s.source)
		if err != nil {
			return nil, fmt.Errorf("health: %s: %w", s.name, err)
		}
		agg.Register(s.name, checker)
	}
	return agg, nil
}

// Close stops the watcher, disposes the caches and flushes telemetry.
// Fields left nil by a failed newApp are skipped.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.board != nil {
		errs = append(errs, a.board.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
