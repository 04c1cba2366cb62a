// Package probe measures round-trip latency to literal IP endpoints.
//
// The probing mechanism (external ping binary, ICMP sockets, or a test fake)
// sits behind the Prober interface; the Engine owns timeouts, retries, and
// sample aggregation so mechanisms can be swapped without touching callers.
package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/streamlens/streamlens/internal/core"
)

// Prober collects latency samples for a single endpoint. Implementations
// must honor ctx cancellation and return an error when no sample could be
// collected.
type Prober interface {
	Probe(ctx context.Context, endpoint core.Endpoint) ([]float64, error)
}

// ErrTimeout marks an attempt that exceeded its deadline.
var ErrTimeout = errors.New("probe timeout")

// ErrExecution marks an attempt whose underlying mechanism failed to run.
var ErrExecution = errors.New("probe execution failed")

// Config controls one engine's probing behavior.
type Config struct {
	Timeout    time.Duration
	PingCount  int
	Retries    int
	MaxLatency time.Duration
	RetryDelay time.Duration
}

// DefaultConfig mirrors the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:    3 * time.Second,
		PingCount:  3,
		Retries:    2,
		MaxLatency: 50 * time.Millisecond,
		RetryDelay: 500 * time.Millisecond,
	}
}

// timeoutMargin absorbs process startup and scheduling jitter on top of the
// configured attempt timeout.
const timeoutMargin = 250 * time.Millisecond

// Engine runs retried probe attempts against single endpoints.
type Engine struct {
	Prober Prober
	Config Config
}

// NewEngine builds an engine around the given prober.
func NewEngine(prober Prober, cfg Config) *Engine {
	if cfg.PingCount < 1 {
		cfg.PingCount = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Engine{Prober: prober, Config: cfg}
}

// Probe measures latency to one endpoint, retrying failed or invalid-latency
// attempts up to Config.Retries additional times. The returned result always
// reflects the final attempt and carries the attempt count. Per-attempt
// failures are folded into the result, never returned as an error; only a
// nil prober or cancelled context aborts early.
func (e *Engine) Probe(ctx context.Context, endpoint core.Endpoint) *core.ProbeResult {
	result := &core.ProbeResult{Endpoint: endpoint}
	if e == nil || e.Prober == nil {
		result.Error = "prober is not configured"
		return result
	}
	if ctx == nil {
		ctx = context.Background()
	}

	maxAttempts := e.Config.Retries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result = e.attempt(ctx, endpoint)
		result.Attempts = attempt

		if ctx.Err() != nil {
			return result
		}

		// A reachable endpoint with an acceptable average ends the loop;
		// success with an out-of-range latency is retried like a failure.
		if result.Succeeded && result.Valid(float64(e.Config.MaxLatency.Milliseconds())) {
			return result
		}
		if attempt == maxAttempts {
			return result
		}

		select {
		case <-ctx.Done():
			return result
		case <-time.After(e.Config.RetryDelay):
		}
	}

	return result
}

func (e *Engine) attempt(ctx context.Context, endpoint core.Endpoint) *core.ProbeResult {
	result := &core.ProbeResult{Endpoint: endpoint}

	attemptCtx, cancel := context.WithTimeout(ctx, e.Config.Timeout+timeoutMargin)
	defer cancel()

	samples, err := e.Prober.Probe(attemptCtx, endpoint)
	if err != nil {
		switch {
		case errors.Is(err, ErrTimeout), errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			result.Error = fmt.Sprintf("timeout after %s: %v", e.Config.Timeout, err)
		default:
			result.Error = err.Error()
		}
		return result
	}
	if len(samples) == 0 {
		result.Error = "no latency samples collected"
		return result
	}

	result.Succeeded = true
	result.SamplesMs = samples
	result.MinMs = samples[0]
	result.MaxMs = samples[0]

	var sum float64
	for _, s := range samples {
		sum += s
		if s < result.MinMs {
			result.MinMs = s
		}
		if s > result.MaxMs {
			result.MaxMs = s
		}
	}
	result.AvgMs = math.Round(sum / float64(len(samples)))

	return result
}
