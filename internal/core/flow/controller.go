// Package flow implements an adaptive admission-control governor. It paces
// concurrent I/O against live CPU and memory pressure: concurrency halves
// under pressure and doubles back once both metrics recover, and callers
// block FIFO on Acquire until a slot opens.
package flow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/streamlens/streamlens/internal/core"
)

// ErrInvalidConfig marks a controller construction rejected at validation.
var ErrInvalidConfig = errors.New("invalid flow controller config")

// ErrDestroyed is returned to every pending and future Acquire after Destroy.
var ErrDestroyed = errors.New("flow controller destroyed")

const initialBackoff = time.Second

// Config bounds the controller. Construction fails fast on any value
// outside its stated range.
type Config struct {
	MemoryThresholdPercent float64
	CPUThresholdPercent    float64
	CheckInterval          time.Duration
	BackoffMultiplier      float64
	MaxBackoffDelay        time.Duration
	MinConcurrency         int
	MaxConcurrency         int
}

// DefaultConfig matches the validation pipeline defaults.
func DefaultConfig() Config {
	return Config{
		MemoryThresholdPercent: 70,
		CPUThresholdPercent:    80,
		CheckInterval:          3 * time.Second,
		BackoffMultiplier:      1.5,
		MaxBackoffDelay:        30 * time.Second,
		MinConcurrency:         1,
		MaxConcurrency:         10,
	}
}

func (c Config) validate() error {
	switch {
	case c.MemoryThresholdPercent < 1 || c.MemoryThresholdPercent > 95:
		return fmt.Errorf("%w: memory threshold %.1f outside [1,95]", ErrInvalidConfig, c.MemoryThresholdPercent)
	case c.CPUThresholdPercent < 1 || c.CPUThresholdPercent > 95:
		return fmt.Errorf("%w: cpu threshold %.1f outside [1,95]", ErrInvalidConfig, c.CPUThresholdPercent)
	case c.CheckInterval < time.Second || c.CheckInterval > time.Minute:
		return fmt.Errorf("%w: check interval %s outside [1s,60s]", ErrInvalidConfig, c.CheckInterval)
	case c.BackoffMultiplier < 1.1 || c.BackoffMultiplier > 3.0:
		return fmt.Errorf("%w: backoff multiplier %.2f outside [1.1,3.0]", ErrInvalidConfig, c.BackoffMultiplier)
	case c.MaxBackoffDelay < time.Second || c.MaxBackoffDelay > 5*time.Minute:
		return fmt.Errorf("%w: max backoff delay %s outside [1s,5m]", ErrInvalidConfig, c.MaxBackoffDelay)
	case c.MinConcurrency < 1:
		return fmt.Errorf("%w: min concurrency %d below 1", ErrInvalidConfig, c.MinConcurrency)
	case c.MinConcurrency >= c.MaxConcurrency:
		return fmt.Errorf("%w: min concurrency %d must be below max %d", ErrInvalidConfig, c.MinConcurrency, c.MaxConcurrency)
	}
	return nil
}

// Observer receives throttle-state notifications synchronously from the
// resource tick. Implementations must not call back into the controller.
type Observer interface {
	ThrottlingStarted(sample core.ResourceSample, stats core.FlowStats)
	ThrottlingStopped(stats core.FlowStats)
	SampleSkipped(err error)
}

type waiter struct {
	ch        chan error
	abandoned bool
}

// Controller is the admission-control governor. All mutable state is guarded
// by one mutex shared between the sampler tick and concurrent Acquire/Release
// callers.
type Controller struct {
	cfg      Config
	sampler  Sampler
	observer Observer
	clock    clock.Clock

	mu           sync.Mutex
	concurrency  int
	active       int
	throttling   bool
	backoffDelay time.Duration
	queue        []*waiter
	destroyed    bool

	ticker   *clock.Ticker
	tickDone chan struct{}

	runCtx    context.Context
	cancelRun context.CancelFunc
}

// Option adjusts controller construction.
type Option func(*Controller)

// WithClock substitutes the wall clock, used by tests to drive ticks.
func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithObserver registers a throttle-state observer.
func WithObserver(o Observer) Option {
	return func(ctrl *Controller) { ctrl.observer = o }
}

// NewController validates cfg, starts the resource tick, and returns a
// controller whose concurrency starts at the configured maximum.
func NewController(cfg Config, sampler Sampler, opts ...Option) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if sampler == nil {
		return nil, fmt.Errorf("%w: sampler is required", ErrInvalidConfig)
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	ctrl := &Controller{
		cfg:         cfg,
		sampler:     sampler,
		clock:       clock.New(),
		concurrency: cfg.MaxConcurrency,
		tickDone:    make(chan struct{}),
		runCtx:      runCtx,
		cancelRun:   cancelRun,
	}
	for _, opt := range opts {
		opt(ctrl)
	}

	ctrl.ticker = ctrl.clock.Ticker(cfg.CheckInterval)
	go ctrl.run()

	return ctrl, nil
}

func (c *Controller) run() {
	defer close(c.tickDone)
	for {
		select {
		case <-c.runCtx.Done():
			return
		case <-c.ticker.C:
			c.tick()
		}
	}
}

// tick samples resource usage and applies the throttle state machine.
// Non-finite readings and sampler errors abort the tick without mutating
// state.
func (c *Controller) tick() {
	sample, err := c.sampler.Sample()
	if err != nil {
		if c.observer != nil {
			c.observer.SampleSkipped(err)
		}
		return
	}
	if !isFinite(sample.MemoryUsedPercent) || !isFinite(sample.CPUUsedPercent) {
		if c.observer != nil {
			c.observer.SampleSkipped(fmt.Errorf("non-finite resource sample: mem=%f cpu=%f",
				sample.MemoryUsedPercent, sample.CPUUsedPercent))
		}
		return
	}

	overMemory := sample.MemoryUsedPercent > c.cfg.MemoryThresholdPercent
	overCPU := sample.CPUUsedPercent > c.cfg.CPUThresholdPercent

	c.mu.Lock()

	if c.destroyed {
		c.mu.Unlock()
		return
	}

	var started, stopped bool
	switch {
	case overMemory || overCPU:
		// Pressure halves the ceiling; repeated over-threshold ticks keep
		// growing the backoff delay up to its cap.
		started = !c.throttling
		c.throttling = true
		c.concurrency = max(c.concurrency/2, c.cfg.MinConcurrency)
		if c.backoffDelay == 0 {
			c.backoffDelay = initialBackoff
		} else {
			scaled := time.Duration(float64(c.backoffDelay) * c.cfg.BackoffMultiplier)
			c.backoffDelay = min(scaled, c.cfg.MaxBackoffDelay)
		}
	case c.throttling:
		// Recovery needs both metrics back under threshold.
		stopped = true
		c.throttling = false
		c.concurrency = min(c.concurrency*2, c.cfg.MaxConcurrency)
		c.backoffDelay = 0
		c.drainLocked()
	}

	stats := c.statsLocked()
	observer := c.observer
	c.mu.Unlock()

	if observer == nil {
		return
	}
	if started {
		observer.ThrottlingStarted(sample, stats)
	}
	if stopped {
		observer.ThrottlingStopped(stats)
	}
}

// Acquire blocks until an admission slot is granted, the context is
// cancelled, or the controller is destroyed. Grants are FIFO: a caller never
// overtakes an already-queued waiter.
func (c *Controller) Acquire(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	if c.active < c.concurrency && len(c.queue) == 0 {
		c.active++
		c.mu.Unlock()
		return nil
	}

	w := &waiter{ch: make(chan error, 1)}
	c.queue = append(c.queue, w)
	c.mu.Unlock()

	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		c.mu.Lock()
		w.abandoned = true
		c.mu.Unlock()
		// The grant may have raced the cancellation; hand the slot on.
		select {
		case err := <-w.ch:
			if err == nil {
				c.Release()
			}
		default:
		}
		return ctx.Err()
	}
}

// Release returns a slot and hands it to the next queued waiter, if any.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return
	}
	if c.active > 0 {
		c.active--
	}
	c.drainLocked()
}

// drainLocked grants queued waiters while slots remain under the ceiling.
func (c *Controller) drainLocked() {
	for len(c.queue) > 0 && c.active < c.concurrency {
		w := c.queue[0]
		c.queue = c.queue[1:]
		if w.abandoned {
			continue
		}
		c.active++
		w.ch <- nil
	}
}

// Stats returns a point-in-time snapshot; reading it does not mutate state.
func (c *Controller) Stats() core.FlowStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Controller) statsLocked() core.FlowStats {
	pending := 0
	for _, w := range c.queue {
		if !w.abandoned {
			pending++
		}
	}
	return core.FlowStats{
		CurrentConcurrency: c.concurrency,
		ActiveOperations:   c.active,
		PendingCount:       pending,
		IsThrottling:       c.throttling,
		BackoffDelay:       c.backoffDelay,
	}
}

// Context is cancelled when the controller is destroyed. Pipelines thread it
// into in-flight probes so shutdown does not leak probe processes.
func (c *Controller) Context() context.Context {
	return c.runCtx
}

// Destroy stops the resource tick, fails every queued waiter with
// ErrDestroyed, resets counters, and cancels the controller context.
// It is safe to call more than once.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true

	queue := c.queue
	c.queue = nil
	c.active = 0
	c.throttling = false
	c.backoffDelay = 0
	c.mu.Unlock()

	c.ticker.Stop()
	c.cancelRun()
	<-c.tickDone

	for _, w := range queue {
		if !w.abandoned {
			w.ch <- ErrDestroyed
		}
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

