package flow

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pbnjay/memory"

	"github.com/streamlens/streamlens/internal/core"
)

// Sampler produces one resource reading per controller tick.
type Sampler interface {
	Sample() (core.ResourceSample, error)
}

// ErrNotPrimed is returned while the CPU sampler still lacks the second
// time-separated reading a delta needs.
var ErrNotPrimed = errors.New("cpu sampler not primed")

// SystemSampler reads memory usage from the OS and CPU usage from /proc/stat
// deltas between consecutive calls.
type SystemSampler struct {
	mu        sync.Mutex
	prevIdle  uint64
	prevTotal uint64
	primed    bool

	statPath string
}

// NewSystemSampler builds a sampler against the live system.
func NewSystemSampler() *SystemSampler {
	return &SystemSampler{statPath: "/proc/stat"}
}

// Sample returns memory-used% and CPU-used% since the previous call.
// The first call primes the CPU counters and returns ErrNotPrimed; callers
// treat that as a skipped tick.
func (s *SystemSampler) Sample() (core.ResourceSample, error) {
	total := memory.TotalMemory()
	free := memory.FreeMemory()

	sample := core.ResourceSample{}
	if total > 0 {
		sample.MemoryUsedPercent = clampPercent(100 * float64(total-free) / float64(total))
	}

	idle, all, err := s.readCPUTimes()
	if err != nil {
		return sample, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.primed {
		s.prevIdle, s.prevTotal, s.primed = idle, all, true
		return sample, ErrNotPrimed
	}

	deltaIdle := float64(idle - s.prevIdle)
	deltaTotal := float64(all - s.prevTotal)
	s.prevIdle, s.prevTotal = idle, all

	if deltaTotal <= 0 {
		return sample, fmt.Errorf("cpu counters did not advance")
	}
	sample.CPUUsedPercent = clampPercent(100 - 100*deltaIdle/deltaTotal)

	return sample, nil
}

// readCPUTimes parses the aggregate "cpu" line: user nice system idle iowait
// irq softirq steal. Idle time includes iowait.
func (s *SystemSampler) readCPUTimes() (idle, total uint64, err error) {
	f, err := os.Open(s.statPath)
	if err != nil {
		return 0, 0, fmt.Errorf("read cpu times: %w", err)
	}
	defer f.Close() // nolint:errcheck // best-effort cleanup on read-only file

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}

		for i, field := range fields[1:] {
			value, parseErr := strconv.ParseUint(field, 10, 64)
			if parseErr != nil {
				return 0, 0, fmt.Errorf("parse cpu field %q: %w", field, parseErr)
			}
			total += value
			if i == 3 || i == 4 { // idle + iowait
				idle += value
			}
		}
		return idle, total, nil
	}

	return 0, 0, errors.New("no cpu line in stat file")
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
