// Package config loads resultcache server configuration from defaults, an
// optional YAML file and RESULTCACHE_* environment variables, in rising
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/resultcache/cache"
	"github.com/jonwraymond/resultcache/observe"
)

// EnvPrefix prefixes environment overrides: server.addr is read from
// RESULTCACHE_SERVER_ADDR.
const EnvPrefix = "RESULTCACHE"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Observe  ObserveConfig  `mapstructure:"observe"`
	Settings SettingsConfig `mapstructure:"settings"`
	Board    BoardConfig    `mapstructure:"board"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	HealthTimeout   time.Duration `mapstructure:"health_timeout"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	ServiceName     string  `mapstructure:"service_name"`
	LogLevel        string  `mapstructure:"log_level"`
	TracingExporter string  `mapstructure:"tracing_exporter"` // none disables tracing
	SamplePct       float64 `mapstructure:"sample_pct"`
	MetricsExporter string  `mapstructure:"metrics_exporter"` // none disables metrics
}

// CacheConfig is the file form of cache.Config.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	MaxTTL          time.Duration `mapstructure:"max_ttl"`
	SWR             bool          `mapstructure:"swr"`
	SWRWindow       time.Duration `mapstructure:"swr_window"` // 0 means ttl; set swr false to disable
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxEntries      int           `mapstructure:"max_entries"`
}

// SettingsConfig configures the settings store.
type SettingsConfig struct {
	Path     string        `mapstructure:"path"`
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce"`
	Cache    CacheConfig   `mapstructure:"cache"`
}

// BoardConfig configures the feature board.
type BoardConfig struct {
	Root       string           `mapstructure:"root"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.health_timeout", 2*time.Second)

	v.SetDefault("observe.service_name", "resultcache")
	v.SetDefault("observe.log_level", "info")
	v.SetDefault("observe.tracing_exporter", "none")
	v.SetDefault("observe.sample_pct", 1.0)
	v.SetDefault("observe.metrics_exporter", "prometheus")

	v.SetDefault("settings.path", "data/settings.yaml")
	v.SetDefault("settings.watch", true)
	v.SetDefault("settings.debounce", 250*time.Millisecond)
	v.SetDefault("settings.cache.ttl", 30*time.Second)
	v.SetDefault("settings.cache.max_ttl", 0)
	v.SetDefault("settings.cache.swr", true)
	v.SetDefault("settings.cache.swr_window", 5*time.Minute)
	v.SetDefault("settings.cache.cleanup_interval", 0)
	v.SetDefault("settings.cache.max_entries", 0)

	v.SetDefault("board.root", "data/projects")
	v.SetDefault("board.cache.ttl", 10*time.Second)
	v.SetDefault("board.cache.max_ttl", 0)
	v.SetDefault("board.cache.swr", false)
	v.SetDefault("board.cache.swr_window", 0)
	v.SetDefault("board.cache.cleanup_interval", time.Minute)
	v.SetDefault("board.cache.max_entries", 1000)
	v.SetDefault("board.resilience.timeout", 5*time.Second)
	v.SetDefault("board.resilience.max_attempts", 3)
	v.SetDefault("board.resilience.retry_delay", 50*time.Millisecond)
	v.SetDefault("board.resilience.max_failures", 5)
	v.SetDefault("board.resilience.reset_timeout", 30*time.Second)
	v.SetDefault("board.resilience.max_concurrent", 32)
	v.SetDefault("board.resilience.queue_wait", 100*time.Millisecond)
	v.SetDefault("board.resilience.rate_per_second", 0)
	v.SetDefault("board.resilience.burst", 0)
}

// Load reads configuration. path may be empty, in which case only
// defaults and environment variables apply. settings.path and board.root
// may reference environment variables as ${VAR}.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	case c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0:
		return fmt.Errorf("%w: server read and write timeouts must be positive", ErrInvalidConfig)
	case c.Server.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: server.shutdown_timeout must be positive", ErrInvalidConfig)
	case c.Server.HealthTimeout <= 0:
		return fmt.Errorf("%w: server.health_timeout must be positive", ErrInvalidConfig)
	case c.Settings.Path == "":
		return fmt.Errorf("%w: settings.path is required", ErrInvalidConfig)
	case c.Settings.Debounce < 0:
		return fmt.Errorf("%w: settings.debounce must not be negative", ErrInvalidConfig)
	case c.Board.Root == "":
		return fmt.Errorf("%w: board.root is required", ErrInvalidConfig)
	}

	obs := c.Observe.ToObserve("")
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
	}
	if err := c.Settings.Cache.ToCache("settings", "settings").Validate(); err != nil {
		return fmt.Errorf("%w: settings.cache: %w", ErrInvalidConfig, err)
	}
	if err := c.Board.Cache.ToCache("board", "board").Validate(); err != nil {
		return fmt.Errorf("%w: board.cache: %w", ErrInvalidConfig, err)
	}
	if err := c.Board.Resilience.Validate(); err != nil {
		return err
	}
	return nil
}

// ToObserve converts to an observe.Config. Logging is always on; an
// exporter named "none" turns its signal off.
func (o ObserveConfig) ToObserve(version string) observe.Config {
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   o.TracingExporter != "" && o.TracingExporter != "none",
			Exporter:  o.TracingExporter,
			SamplePct: o.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.MetricsExporter != "" && o.MetricsExporter != "none",
			Exporter: o.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   o.LogLevel,
		},
	}
}

// ToCache converts to a cache.Config with the given name and namespace.
// Logger, Instrumentation and Clock are left for the caller.
func (c CacheConfig) ToCache(name, namespace string) cache.Config {
	return cache.Config{
		Name:            name,
		Namespace:       namespace,
		DefaultTTL:      c.TTL,
		MaxTTL:          c.MaxTTL,
		EnableSWR:       c.SWR,
		SWRWindow:       c.SWRWindow,
		CleanupInterval: c.CleanupInterval,
		MaxEntries:      c.MaxEntries,
	}
}
