// Package engine coordinates the endpoint health-validation pipeline:
// extraction, flow-governed batch probing, and result summarization.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/streamlens/streamlens/internal/core"
	"github.com/streamlens/streamlens/internal/core/extract"
	"github.com/streamlens/streamlens/internal/core/flow"
	"github.com/streamlens/streamlens/internal/core/probe"
	"github.com/streamlens/streamlens/internal/core/schedule"
)

// Validator runs latency validation over endpoint sets. One validator owns
// one flow controller; Destroy releases it and cancels in-flight probes.
type Validator struct {
	engine     *probe.Engine
	controller *flow.Controller
	scheduler  *schedule.Scheduler
	maxLatency time.Duration

	Clock func() time.Time
}

// NewValidator wires a prober, probe config, and flow controller config into
// a ready pipeline. Construction fails only on invalid flow config.
func NewValidator(prober probe.Prober, probeCfg probe.Config, flowCfg flow.Config, sampler flow.Sampler, opts ...flow.Option) (*Validator, error) {
	controller, err := flow.NewController(flowCfg, sampler, opts...)
	if err != nil {
		return nil, err
	}

	engine := probe.NewEngine(prober, probeCfg)
	return &Validator{
		engine:     engine,
		controller: controller,
		scheduler:  schedule.NewScheduler(controller, engine.Probe),
		maxLatency: probeCfg.MaxLatency,
	}, nil
}

// Controller exposes the governor for status reporting.
func (v *Validator) Controller() *flow.Controller {
	return v.controller
}

// SetInterBatchPause overrides the scheduler's inter-wave pause.
// Non-positive values leave the default in place.
func (v *Validator) SetInterBatchPause(pause time.Duration) {
	if pause > 0 {
		v.scheduler.Pause = pause
	}
}

// Destroy tears down the flow controller. Queued admissions fail immediately
// and the controller context cancels in-flight probe attempts.
func (v *Validator) Destroy() {
	v.controller.Destroy()
}

// ValidateChannels extracts literal-IP candidates from the channels and
// validates them.
func (v *Validator) ValidateChannels(ctx context.Context, channels []core.Channel, policy extract.Policy) *core.ValidationReport {
	return v.ValidateLatency(ctx, extract.Extract(channels, policy))
}

// ValidateLatency probes every endpoint and returns a report. It never
// returns an error: empty input and internal failures surface as a report
// with Success=false, empty sets, and an Error string, so the surrounding
// pipeline can always continue with whatever validated.
func (v *Validator) ValidateLatency(ctx context.Context, endpoints []core.Endpoint) *core.ValidationReport {
	report := &core.ValidationReport{
		RunID:     uuid.New().String(),
		Valid:     []core.Endpoint{},
		Invalid:   []core.Endpoint{},
		Results:   make(map[string]*core.ProbeResult),
		StartedAt: v.now(),
	}

	if len(endpoints) == 0 {
		report.Error = "no endpoints to validate"
		report.CompletedAt = v.now()
		return report
	}

	if ctx == nil {
		ctx = context.Background()
	}
	// Destroying the validator cancels in-flight probes too, not just
	// queued admissions.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(v.controller.Context(), cancel)
	defer stop()

	results := v.scheduler.RunAll(runCtx, endpoints)

	maxLatencyMs := float64(v.maxLatency.Milliseconds())
	for _, result := range results {
		if result == nil {
			continue
		}
		report.Results[result.Endpoint.Address] = result
		if result.Valid(maxLatencyMs) {
			report.Valid = append(report.Valid, result.Endpoint)
		} else {
			report.Invalid = append(report.Invalid, result.Endpoint)
		}
	}

	report.Stats = core.Summarize(results, maxLatencyMs)
	report.Success = true
	report.CompletedAt = v.now()
	return report
}

func (v *Validator) now() time.Time {
	if v != nil && v.Clock != nil {
		return v.Clock()
	}
	return time.Now().UTC()
}
