package config

import (
	"time"
)

// Config represents the complete application configuration.
// Values come from three layers: built-in defaults, the user config file,
// and STREAMLENS_* environment variables.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Sources SourcesConfig `mapstructure:"sources"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Extract ExtractConfig `mapstructure:"extract"`
	Probe   ProbeConfig   `mapstructure:"probe"`
	Flow    FlowConfig    `mapstructure:"flow"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Logos   LogoConfig    `mapstructure:"logos"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// SourcesConfig locates the upstream playlist manifest and tunes fetching.
type SourcesConfig struct {
	Manifest    string        `mapstructure:"manifest"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// FilterConfig contains channel filtering rules.
type FilterConfig struct {
	Allow        []string `mapstructure:"allow"`
	Deny         []string `mapstructure:"deny"`
	DefaultGroup string   `mapstructure:"default_group"`
}

// ExtractConfig controls which endpoint addresses are eligible for probing.
type ExtractConfig struct {
	IncludePrivate   bool `mapstructure:"include_private"`
	IncludeLocalhost bool `mapstructure:"include_localhost"`
	IPv4             bool `mapstructure:"ipv4"`
	IPv6             bool `mapstructure:"ipv6"`
}

// ProbeConfig contains latency probe settings.
type ProbeConfig struct {
	TimeoutMs    int           `mapstructure:"timeout_ms"`
	PingCount    int           `mapstructure:"ping_count"`
	Retries      int           `mapstructure:"retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	MaxLatencyMs float64       `mapstructure:"max_latency_ms"`
	UseICMP      bool          `mapstructure:"use_icmp"`
}

// FlowConfig contains adaptive concurrency settings.
type FlowConfig struct {
	MinConcurrency    int           `mapstructure:"min_concurrency"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	MemoryThreshold   float64       `mapstructure:"memory_threshold"`
	CPUThreshold      float64       `mapstructure:"cpu_threshold"`
	CheckInterval     time.Duration `mapstructure:"check_interval"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	InterBatchPause   time.Duration `mapstructure:"inter_batch_pause"`
}

// CatalogConfig controls addon catalog emission.
type CatalogConfig struct {
	OutputDir   string `mapstructure:"output_dir"`
	AddonID     string `mapstructure:"addon_id"`
	AddonName   string `mapstructure:"addon_name"`
	Description string `mapstructure:"description"`
	Version     string `mapstructure:"version"`
}

// LogoConfig controls logo thumbnail generation.
type LogoConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	OutputDir   string `mapstructure:"output_dir"`
	MaxSize     int    `mapstructure:"max_size"`
	Format      string `mapstructure:"format"`
	JPEGQuality int    `mapstructure:"jpeg_quality"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains metrics endpoint configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}
