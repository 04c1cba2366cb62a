package cmd

import (
	"time"

	"go.uber.org/zap"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/core"
	"github.com/streamlens/streamlens/internal/core/engine"
	"github.com/streamlens/streamlens/internal/core/extract"
	"github.com/streamlens/streamlens/internal/core/flow"
	"github.com/streamlens/streamlens/internal/core/probe"
	"github.com/streamlens/streamlens/internal/metrics"
	"github.com/streamlens/streamlens/internal/observability"
)

// buildValidator assembles the probe engine, flow controller, and scheduler
// from configuration. The caller owns the returned validator and must call
// Destroy when done.
func buildValidator(cfg *config.Config) (*engine.Validator, error) {
	timeout := time.Duration(cfg.Probe.TimeoutMs) * time.Millisecond

	var prober probe.Prober
	if cfg.Probe.UseICMP {
		prober = probe.NewICMPProber(cfg.Probe.PingCount, timeout)
	} else {
		p, err := probe.NewPingProber(cfg.Probe.PingCount, timeout)
		if err != nil {
			return nil, err
		}
		prober = p
	}

	probeCfg := probe.Config{
		Timeout:    timeout,
		PingCount:  cfg.Probe.PingCount,
		Retries:    cfg.Probe.Retries,
		RetryDelay: cfg.Probe.RetryDelay,
		MaxLatency: time.Duration(cfg.Probe.MaxLatencyMs) * time.Millisecond,
	}

	flowCfg := flow.Config{
		MemoryThresholdPercent: cfg.Flow.MemoryThreshold,
		CPUThresholdPercent:    cfg.Flow.CPUThreshold,
		CheckInterval:          cfg.Flow.CheckInterval,
		BackoffMultiplier:      cfg.Flow.BackoffMultiplier,
		MaxBackoffDelay:        cfg.Flow.MaxBackoff,
		MinConcurrency:         cfg.Flow.MinConcurrency,
		MaxConcurrency:         cfg.Flow.MaxConcurrency,
	}

	validator, err := engine.NewValidator(prober, probeCfg, flowCfg, flow.NewSystemSampler(),
		flow.WithObserver(loggingFlowObserver{}))
	if err != nil {
		return nil, err
	}
	validator.SetInterBatchPause(cfg.Flow.InterBatchPause)
	return validator, nil
}

// extractPolicy maps the extract config onto an extraction policy.
func extractPolicy(cfg *config.Config) extract.Policy {
	return extract.Policy{
		ExcludeLocalhost:     !cfg.Extract.IncludeLocalhost,
		ExcludePrivateRanges: !cfg.Extract.IncludePrivate,
		IncludeIPv4:          cfg.Extract.IPv4,
		IncludeIPv6:          cfg.Extract.IPv6,
	}
}

// recordProbeMetrics publishes per-probe counters for a finished run.
func recordProbeMetrics(report *core.ValidationReport) {
	if report == nil {
		return
	}
	for _, result := range report.Results {
		if result != nil {
			metrics.RecordProbe(result.Succeeded, result.AvgMs, result.Attempts)
		}
	}
}

// loggingFlowObserver surfaces throttle transitions in the log stream and
// the telemetry counters.
type loggingFlowObserver struct{}

func (loggingFlowObserver) ThrottlingStarted(sample core.ResourceSample, stats core.FlowStats) {
	metrics.RecordThrottleEvent(true)
	metrics.SetConcurrencyCeiling(stats.CurrentConcurrency)
	if observability.CLILogger != nil {
		observability.CLILogger.Warn("Resource pressure detected, throttling probes",
			zap.Float64("memory_pct", sample.MemoryUsedPercent),
			zap.Float64("cpu_pct", sample.CPUUsedPercent),
			zap.Int("concurrency", stats.CurrentConcurrency),
			zap.Duration("backoff", stats.BackoffDelay))
	}
}

func (loggingFlowObserver) ThrottlingStopped(stats core.FlowStats) {
	metrics.RecordThrottleEvent(false)
	metrics.SetConcurrencyCeiling(stats.CurrentConcurrency)
	if observability.CLILogger != nil {
		observability.CLILogger.Info("Resources recovered, widening probe concurrency",
			zap.Int("concurrency", stats.CurrentConcurrency))
	}
}

func (loggingFlowObserver) SampleSkipped(err error) {
	if observability.CLILogger != nil {
		observability.CLILogger.Debug("Resource sample skipped", zap.Error(err))
	}
}
