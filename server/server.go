// Package server exposes the settings store, the feature board and cache
// health over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/resultcache/board"
	"github.com/jonwraymond/resultcache/config"
	"github.com/jonwraymond/resultcache/health"
	"github.com/jonwraymond/resultcache/observe"
	"github.com/jonwraymond/resultcache/settings"
)

// ErrMissingDependency is returned by New when a required service is nil.
var ErrMissingDependency = errors.New("server: missing dependency")

// Options carries the services a Server routes to.
type Options struct {
	Settings *settings.Store // required
	Board    *board.Service  // required

	// Health runs the readiness and detailed health checks.
	// Defaults to an empty aggregator.
	Health *health.Aggregator

	// Metrics serves /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler

	Logger observe.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg      config.ServerConfig
	router   *gin.Engine
	settings *settings.Store
	board    *board.Service
	health   *health.Aggregator
	metrics  http.Handler
	log      observe.Logger
}

// New builds a Server and its routes.
func New(cfg config.ServerConfig, opts Options) (*Server, error) {
	if opts.Settings == nil {
		return nil, fmt.Errorf("%w: settings store", ErrMissingDependency)
	}
	if opts.Board == nil {
		return nil, fmt.Errorf("%w: board service", ErrMissingDependency)
	}
	if opts.Health == nil {
		opts.Health = health.NewAggregator()
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}

	s := &Server{
		cfg:      cfg,
		router:   gin.New(),
		settings: opts.Settings,
		board:    opts.Board,
		health:   opts.Health,
		metrics:  opts.Metrics,
		log:      opts.Logger,
	}
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.log))
	s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", gin.WrapF(health.LivenessHandler()))
	s.router.GET("/readyz", gin.WrapF(health.ReadinessHandler(s.health)))
	s.router.GET("/health", gin.WrapF(health.DetailedHandler(s.health)))
	checkOne := health.CheckHandler(s.health)
	s.router.GET("/health/:name", func(c *gin.Context) {
		c.Request.SetPathValue("name", c.Param("name"))
		checkOne(c.Writer, c.Request)
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics))

	api := s.router.Group("/api")
	{
		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.putSettings)
		api.POST("/settings/reload", s.reloadSettings)

		api.GET("/projects/:project/features", s.listFeatures)
		api.GET("/projects/:project/features/:id", s.getFeature)
		api.PUT("/projects/:project/features/:id", s.putFeature)
		api.DELETE("/projects/:project/features/:id", s.deleteFeature)
		api.POST("/projects/:project/invalidate", s.invalidateProject)

		api.GET("/cache/stats", s.cacheStats)
	}
}

// Run listens on the configured address and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info(ctx, "server listening", observe.F("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	s.log.Info(shutdownCtx, "server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func requestLogger(log observe.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		log.Debug(c.Request.Context(), "request",
			observe.F("method", c.Request.Method),
			observe.F("route", route),
			observe.F("status", c.Writer.Status()),
			observe.F("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}
