// Package config provides centralized configuration management for
// StreamLens. It layers built-in defaults, an optional YAML config file,
// and STREAMLENS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "STREAMLENS"

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// Load reads configuration from the optional file at path plus environment
// overrides, validates it, and makes it the current configuration.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// Validate rejects configurations that cannot produce a working run.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if cfg.Probe.TimeoutMs <= 0 {
		return errors.New("probe.timeout_ms must be positive")
	}
	if cfg.Probe.PingCount <= 0 {
		return errors.New("probe.ping_count must be positive")
	}
	if cfg.Probe.Retries < 0 {
		return errors.New("probe.retries must not be negative")
	}
	if cfg.Probe.MaxLatencyMs <= 0 {
		return errors.New("probe.max_latency_ms must be positive")
	}

	if cfg.Flow.MinConcurrency < 1 {
		return errors.New("flow.min_concurrency must be at least 1")
	}
	if cfg.Flow.MaxConcurrency <= cfg.Flow.MinConcurrency {
		return errors.New("flow.max_concurrency must exceed flow.min_concurrency")
	}
	if cfg.Flow.MemoryThreshold < 1 || cfg.Flow.MemoryThreshold > 95 {
		return errors.New("flow.memory_threshold must be between 1 and 95")
	}
	if cfg.Flow.CPUThreshold < 1 || cfg.Flow.CPUThreshold > 95 {
		return errors.New("flow.cpu_threshold must be between 1 and 95")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be a valid port number")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "./streamlens.db")

	v.SetDefault("sources.manifest", "./sources.yaml")
	v.SetDefault("sources.cache_ttl", time.Hour)
	v.SetDefault("sources.concurrency", 4)
	v.SetDefault("sources.timeout", 30*time.Second)

	v.SetDefault("filter.default_group", "Other")

	v.SetDefault("extract.include_private", false)
	v.SetDefault("extract.include_localhost", false)
	v.SetDefault("extract.ipv4", true)
	v.SetDefault("extract.ipv6", false)

	v.SetDefault("probe.timeout_ms", 3000)
	v.SetDefault("probe.ping_count", 3)
	v.SetDefault("probe.retries", 2)
	v.SetDefault("probe.retry_delay", 500*time.Millisecond)
	v.SetDefault("probe.max_latency_ms", 50.0)
	v.SetDefault("probe.use_icmp", false)

	v.SetDefault("flow.min_concurrency", 1)
	v.SetDefault("flow.max_concurrency", 10)
	v.SetDefault("flow.memory_threshold", 70.0)
	v.SetDefault("flow.cpu_threshold", 80.0)
	v.SetDefault("flow.check_interval", 3*time.Second)
	v.SetDefault("flow.backoff_multiplier", 1.5)
	v.SetDefault("flow.max_backoff", 30*time.Second)
	v.SetDefault("flow.inter_batch_pause", 50*time.Millisecond)

	v.SetDefault("catalog.output_dir", "./dist")
	v.SetDefault("catalog.addon_id", "com.streamlens.tv")
	v.SetDefault("catalog.addon_name", "StreamLens TV")
	v.SetDefault("catalog.description", "Validated live TV channels aggregated from public playlists")
	v.SetDefault("catalog.version", "1.0.0")

	v.SetDefault("logos.enabled", false)
	v.SetDefault("logos.output_dir", "./dist/logos")
	v.SetDefault("logos.max_size", 256)
	v.SetDefault("logos.format", "jpeg")
	v.SetDefault("logos.jpeg_quality", 80)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "SIMPLE")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)
}
