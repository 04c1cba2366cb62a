package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/streamlens/streamlens/internal/core"
)

// stubSampler replays scripted samples; the last one repeats forever.
type stubSampler struct {
	mu      sync.Mutex
	samples []core.ResourceSample
	errs    []error
}

func (s *stubSampler) push(sample core.ResourceSample, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	s.errs = append(s.errs, err)
}

func (s *stubSampler) Sample() (core.ResourceSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return core.ResourceSample{MemoryUsedPercent: 10, CPUUsedPercent: 10}, nil
	}
	sample, err := s.samples[0], s.errs[0]
	if len(s.samples) > 1 {
		s.samples = s.samples[1:]
		s.errs = s.errs[1:]
	}
	return sample, err
}

func calmSample() core.ResourceSample {
	return core.ResourceSample{MemoryUsedPercent: 50, CPUUsedPercent: 40}
}

func hotMemorySample() core.ResourceSample {
	return core.ResourceSample{MemoryUsedPercent: 85, CPUUsedPercent: 20}
}

func newTestController(t *testing.T, cfg Config, sampler Sampler, opts ...Option) (*Controller, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	opts = append(opts, WithClock(mock))
	ctrl, err := NewController(cfg, sampler, opts...)
	require.NoError(t, err)
	t.Cleanup(ctrl.Destroy)
	return ctrl, mock
}

func awaitStats(t *testing.T, ctrl *Controller, want func(core.FlowStats) bool) core.FlowStats {
	t.Helper()
	var last core.FlowStats
	require.Eventually(t, func() bool {
		last = ctrl.Stats()
		return want(last)
	}, time.Second, time.Millisecond)
	return last
}

func TestConfigValidation(t *testing.T) {
	cases := map[string]func(*Config){
		"memory threshold too high": func(c *Config) { c.MemoryThresholdPercent = 96 },
		"memory threshold too low":  func(c *Config) { c.MemoryThresholdPercent = 0 },
		"cpu threshold too high":    func(c *Config) { c.CPUThresholdPercent = 99 },
		"check interval too short":  func(c *Config) { c.CheckInterval = 100 * time.Millisecond },
		"check interval too long":   func(c *Config) { c.CheckInterval = 2 * time.Minute },
		"multiplier too small":      func(c *Config) { c.BackoffMultiplier = 1.0 },
		"multiplier too large":      func(c *Config) { c.BackoffMultiplier = 3.5 },
		"max backoff too short":     func(c *Config) { c.MaxBackoffDelay = 500 * time.Millisecond },
		"min concurrency zero":      func(c *Config) { c.MinConcurrency = 0 },
		"min not below max":         func(c *Config) { c.MinConcurrency = 10; c.MaxConcurrency = 10 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := NewController(cfg, &stubSampler{})
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := NewController(DefaultConfig(), nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestThrottleHalvesConcurrency(t *testing.T) {
	sampler := &stubSampler{}
	sampler.push(hotMemorySample(), nil)

	ctrl, mock := newTestController(t, DefaultConfig(), sampler)
	require.Equal(t, 10, ctrl.Stats().CurrentConcurrency)

	mock.Add(3 * time.Second)

	stats := awaitStats(t, ctrl, func(s core.FlowStats) bool { return s.IsThrottling })
	require.Equal(t, 5, stats.CurrentConcurrency)
	require.Equal(t, time.Second, stats.BackoffDelay)
}

func TestRecoveryDoublesConcurrencyAndResetsBackoff(t *testing.T) {
	sampler := &stubSampler{}
	sampler.push(hotMemorySample(), nil)
	sampler.push(calmSample(), nil)

	ctrl, mock := newTestController(t, DefaultConfig(), sampler)

	mock.Add(3 * time.Second)
	awaitStats(t, ctrl, func(s core.FlowStats) bool { return s.IsThrottling })

	mock.Add(3 * time.Second)
	stats := awaitStats(t, ctrl, func(s core.FlowStats) bool { return !s.IsThrottling })
	require.Equal(t, 10, stats.CurrentConcurrency)
	require.Equal(t, time.Duration(0), stats.BackoffDelay)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BackoffMultiplier = 3.0
	cfg.MaxBackoffDelay = 5 * time.Second

	sampler := &stubSampler{}
	for range 4 {
		sampler.push(hotMemorySample(), nil)
	}

	ctrl, mock := newTestController(t, cfg, sampler)

	mock.Add(3 * time.Second)
	awaitStats(t, ctrl, func(s core.FlowStats) bool { return s.BackoffDelay == time.Second })

	mock.Add(3 * time.Second)
	awaitStats(t, ctrl, func(s core.FlowStats) bool { return s.BackoffDelay == 3*time.Second })

	mock.Add(3 * time.Second)
	stats := awaitStats(t, ctrl, func(s core.FlowStats) bool { return s.BackoffDelay == 5*time.Second })
	require.True(t, stats.IsThrottling)
}

func TestConcurrencyStaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinConcurrency = 2
	cfg.MaxConcurrency = 8

	sampler := &stubSampler{}
	// Long pressure run, then long recovery run.
	for range 6 {
		sampler.push(hotMemorySample(), nil)
	}
	for range 6 {
		sampler.push(calmSample(), nil)
	}

	ctrl, mock := newTestController(t, cfg, sampler)

	for range 12 {
		mock.Add(3 * time.Second)
		stats := ctrl.Stats()
		require.GreaterOrEqual(t, stats.CurrentConcurrency, cfg.MinConcurrency)
		require.LessOrEqual(t, stats.CurrentConcurrency, cfg.MaxConcurrency)
	}

	stats := awaitStats(t, ctrl, func(s core.FlowStats) bool { return !s.IsThrottling })
	require.Equal(t, 8, stats.CurrentConcurrency)
}

func TestSamplerErrorSkipsTickWithoutMutation(t *testing.T) {
	sampler := &stubSampler{}
	sampler.push(core.ResourceSample{}, errors.New("sensor offline"))

	ctrl, mock := newTestController(t, DefaultConfig(), sampler)
	before := ctrl.Stats()

	mock.Add(3 * time.Second)
	// Give the tick goroutine a chance to run; state must be untouched.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, before, ctrl.Stats())
}

func TestAcquireBlocksAtCeilingAndFIFO(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinConcurrency = 1
	cfg.MaxConcurrency = 2

	ctrl, _ := newTestController(t, cfg, &stubSampler{})

	require.NoError(t, ctrl.Acquire(context.Background()))
	require.NoError(t, ctrl.Acquire(context.Background()))

	order := make(chan int, 2)
	for i := 1; i <= 2; i++ {
		go func(n int) {
			if err := ctrl.Acquire(context.Background()); err == nil {
				order <- n
			}
		}(i)
		// Wait until the waiter is queued so arrival order is deterministic.
		awaitStats(t, ctrl, func(s core.FlowStats) bool { return s.PendingCount == i })
	}

	ctrl.Release()
	require.Equal(t, 1, <-order)
	ctrl.Release()
	require.Equal(t, 2, <-order)
}

func TestAcquireContextCancellation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 2
	cfg.MinConcurrency = 1

	ctrl, _ := newTestController(t, cfg, &stubSampler{})
	require.NoError(t, ctrl.Acquire(context.Background()))
	require.NoError(t, ctrl.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := ctrl.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned waiter must not absorb a released slot.
	ctrl.Release()
	require.NoError(t, ctrl.Acquire(context.Background()))
}

func TestDestroyFailsQueuedAndFutureWaiters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 2
	cfg.MinConcurrency = 1

	ctrl, _ := newTestController(t, cfg, &stubSampler{})
	require.NoError(t, ctrl.Acquire(context.Background()))
	require.NoError(t, ctrl.Acquire(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- ctrl.Acquire(context.Background())
	}()
	awaitStats(t, ctrl, func(s core.FlowStats) bool { return s.PendingCount == 1 })

	ctrl.Destroy()

	require.ErrorIs(t, <-errCh, ErrDestroyed)
	require.ErrorIs(t, ctrl.Acquire(context.Background()), ErrDestroyed)

	stats := ctrl.Stats()
	require.Zero(t, stats.ActiveOperations)
	require.Zero(t, stats.PendingCount)

	select {
	case <-ctrl.Context().Done():
	default:
		t.Fatal("controller context must be cancelled after destroy")
	}

	// Destroy is idempotent.
	ctrl.Destroy()
}

func TestStatsReadIsIdempotent(t *testing.T) {
	ctrl, _ := newTestController(t, DefaultConfig(), &stubSampler{})
	require.NoError(t, ctrl.Acquire(context.Background()))

	first := ctrl.Stats()
	second := ctrl.Stats()
	require.Equal(t, first, second)
}

type recordingObserver struct {
	mu      sync.Mutex
	started int
	stopped int
	skipped int
}

func (o *recordingObserver) ThrottlingStarted(core.ResourceSample, core.FlowStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) ThrottlingStopped(core.FlowStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped++
}

func (o *recordingObserver) SampleSkipped(error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped++
}

func (o *recordingObserver) counts() (int, int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.started, o.stopped, o.skipped
}

func TestObserverNotifications(t *testing.T) {
	sampler := &stubSampler{}
	sampler.push(core.ResourceSample{}, ErrNotPrimed)
	sampler.push(hotMemorySample(), nil)
	sampler.push(calmSample(), nil)

	observer := &recordingObserver{}
	ctrl, mock := newTestController(t, DefaultConfig(), sampler, WithObserver(observer))

	mock.Add(3 * time.Second)
	require.Eventually(t, func() bool {
		_, _, skipped := observer.counts()
		return skipped == 1
	}, time.Second, time.Millisecond)

	mock.Add(3 * time.Second)
	awaitStats(t, ctrl, func(s core.FlowStats) bool { return s.IsThrottling })

	mock.Add(3 * time.Second)
	awaitStats(t, ctrl, func(s core.FlowStats) bool { return !s.IsThrottling })

	require.Eventually(t, func() bool {
		started, stopped, _ := observer.counts()
		return started == 1 && stopped == 1
	}, time.Second, time.Millisecond)
}
