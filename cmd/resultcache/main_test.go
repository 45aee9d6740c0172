package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/resultcache/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.Settings.Path = filepath.Join(dir, "conf", "settings.yaml")
	cfg.Board.Root = filepath.Join(dir, "projects")
	cfg.Observe.MetricsExporter = "none"
	cfg.Observe.LogLevel = "error"
	return cfg
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "resultcache "+version+"\n", out.String())
}

func TestServeCommand_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settings:\n  debounce: -1s\n"), 0o600))

	cmd := rootCmd()
	cmd.SetArgs([]string{"serve", "--config", path})
	err := cmd.Execute()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestServeCommand_UnknownFlag(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "--no-such-flag"})
	assert.Error(t, cmd.Execute())
}

func TestNewApp(t *testing.T) {
	cfg := testConfig(t)

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a.watcher, "watch is on by default")
	assert.DirExists(t, filepath.Dir(cfg.Settings.Path))
	assert.Equal(t, []string{"settings", "board.features", "board.feature"}, a.health.CheckerNames())

	h := a.server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/projects/alpha/features/login",
		strings.NewReader(`{"title":"Login","status":"backlog"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects/alpha/features", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"login"`)
	assert.FileExists(t, filepath.Join(cfg.Board.Root, "alpha", "features", "login.json"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, a.Close(context.Background()))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "disposed caches fail readiness")
}

func TestNewApp_WithoutWatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Settings.Watch = false

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.Nil(t, a.watcher)
}

func TestNewApp_InvalidObserveConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Observe.TracingExporter = "carrier-pigeon"

	_, err := newApp(context.Background(), cfg)
	assert.Error(t, err)
}
