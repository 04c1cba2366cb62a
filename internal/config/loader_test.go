package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 8787, cfg.Server.Port)
		assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		assert.Equal(t, "./streamlens.db", cfg.Store.Path)
		assert.Empty(t, cfg.Store.URL)

		assert.Equal(t, 3000, cfg.Probe.TimeoutMs)
		assert.Equal(t, 3, cfg.Probe.PingCount)
		assert.Equal(t, 2, cfg.Probe.Retries)
		assert.Equal(t, 500*time.Millisecond, cfg.Probe.RetryDelay)
		assert.Equal(t, 50.0, cfg.Probe.MaxLatencyMs)

		assert.Equal(t, 1, cfg.Flow.MinConcurrency)
		assert.Equal(t, 10, cfg.Flow.MaxConcurrency)
		assert.Equal(t, 70.0, cfg.Flow.MemoryThreshold)
		assert.Equal(t, 80.0, cfg.Flow.CPUThreshold)
		assert.Equal(t, 3*time.Second, cfg.Flow.CheckInterval)
		assert.Equal(t, 1.5, cfg.Flow.BackoffMultiplier)
		assert.Equal(t, 30*time.Second, cfg.Flow.MaxBackoff)
		assert.Equal(t, 50*time.Millisecond, cfg.Flow.InterBatchPause)

		assert.True(t, cfg.Extract.IPv4)
		assert.False(t, cfg.Extract.IPv6)
		assert.False(t, cfg.Extract.IncludePrivate)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
		assert.True(t, cfg.Health.Enabled)
		assert.False(t, cfg.Metrics.Enabled)
	})

	t.Run("LoadFromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
server:
  port: 9000
probe:
  max_latency_ms: 80
flow:
  max_concurrency: 20
filter:
  deny:
    - shopping
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 80.0, cfg.Probe.MaxLatencyMs)
		assert.Equal(t, 20, cfg.Flow.MaxConcurrency)
		assert.Equal(t, []string{"shopping"}, cfg.Filter.Deny)

		// Untouched sections keep their defaults.
		assert.Equal(t, 3, cfg.Probe.PingCount)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("STREAMLENS_SERVER_PORT", "3000")
		t.Setenv("STREAMLENS_LOGGING_LEVEL", "warn")
		t.Setenv("STREAMLENS_PROBE_TIMEOUT_MS", "5000")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, 5000, cfg.Probe.TimeoutMs)
	})

	t.Run("DurationFromEnv", func(t *testing.T) {
		t.Setenv("STREAMLENS_SERVER_READ_TIMEOUT", "45s")
		t.Setenv("STREAMLENS_FLOW_CHECK_INTERVAL", "10s")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 10*time.Second, cfg.Flow.CheckInterval)
	})

	t.Run("RejectsMissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("RejectsInvalidValues", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
flow:
  min_concurrency: 8
  max_concurrency: 4
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestGetConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	retrieved := GetConfig()
	assert.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("DefaultsAreValid", func(t *testing.T) {
		require.NoError(t, Validate(base()))
	})

	t.Run("RejectsNonPositiveLatencyCeiling", func(t *testing.T) {
		cfg := base()
		cfg.Probe.MaxLatencyMs = 0
		require.Error(t, Validate(cfg))
	})

	t.Run("RejectsOutOfRangeThresholds", func(t *testing.T) {
		cfg := base()
		cfg.Flow.MemoryThreshold = 99
		require.Error(t, Validate(cfg))
	})

	t.Run("RejectsNilConfig", func(t *testing.T) {
		require.Error(t, Validate(nil))
	})
}
