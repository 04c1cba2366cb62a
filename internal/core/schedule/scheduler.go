// Package schedule fans endpoint sets out into bounded-concurrency probe
// waves. Each wave is sized by the flow controller's ceiling at the moment
// the wave starts, so a throttled run shrinks and a recovered run widens
// between consecutive waves.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/streamlens/streamlens/internal/core"
)

// Governor is the admission-control surface the scheduler consumes.
type Governor interface {
	Acquire(ctx context.Context) error
	Release()
	Stats() core.FlowStats
}

// ProbeFunc measures one endpoint. It must always return a result, folding
// failures into it rather than panicking or returning errors.
type ProbeFunc func(ctx context.Context, endpoint core.Endpoint) *core.ProbeResult

// DefaultInterBatchPause keeps consecutive waves from bursting the network
// back to back.
const DefaultInterBatchPause = 50 * time.Millisecond

// Scheduler runs probes in sequential-barrier waves.
type Scheduler struct {
	Governor Governor
	Probe    ProbeFunc
	Pause    time.Duration
}

// NewScheduler builds a scheduler over the given governor and probe.
func NewScheduler(governor Governor, probe ProbeFunc) *Scheduler {
	return &Scheduler{
		Governor: governor,
		Probe:    probe,
		Pause:    DefaultInterBatchPause,
	}
}

// RunAll probes every endpoint exactly once and returns one result per
// endpoint, in no particular order. Probes inside a wave run concurrently;
// the scheduler waits for the whole wave before starting the next one.
// While the governor reports throttling, its backoff delay stretches the
// inter-wave pause.
func (s *Scheduler) RunAll(ctx context.Context, endpoints []core.Endpoint) []*core.ProbeResult {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]*core.ProbeResult, 0, len(endpoints))

	for start := 0; start < len(endpoints); {
		stats := s.Governor.Stats()
		size := max(stats.CurrentConcurrency, 1)
		end := min(start+size, len(endpoints))

		results = append(results, s.runWave(ctx, endpoints[start:end])...)
		start = end

		if start >= len(endpoints) {
			break
		}
		pause := s.Pause
		if stats.IsThrottling {
			pause += stats.BackoffDelay
		}
		select {
		case <-ctx.Done():
			// Remaining endpoints become cancellation failures so the
			// endpoint→result association stays exactly-once.
			for _, ep := range endpoints[start:] {
				results = append(results, cancelledResult(ep, ctx.Err()))
			}
			return results
		case <-time.After(pause):
		}
	}

	return results
}

func (s *Scheduler) runWave(ctx context.Context, wave []core.Endpoint) []*core.ProbeResult {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	results := make([]*core.ProbeResult, 0, len(wave))

	for _, ep := range wave {
		wg.Add(1)
		go func(endpoint core.Endpoint) {
			defer wg.Done()

			var result *core.ProbeResult
			if err := s.Governor.Acquire(ctx); err != nil {
				result = cancelledResult(endpoint, err)
			} else {
				result = s.Probe(ctx, endpoint)
				s.Governor.Release()
			}
			if result == nil {
				result = cancelledResult(endpoint, context.Canceled)
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(ep)
	}

	wg.Wait()
	return results
}

func cancelledResult(endpoint core.Endpoint, err error) *core.ProbeResult {
	msg := "probe aborted"
	if err != nil {
		msg = err.Error()
	}
	return &core.ProbeResult{Endpoint: endpoint, Error: msg}
}
