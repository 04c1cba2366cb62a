package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/streamlens/streamlens/internal/core"
)

// pingCommand describes how one platform spells its ping invocation.
// The table is consulted once at construction, not per call.
type pingCommand struct {
	binary      string
	binaryV6    string
	buildArgs   func(addr string, family core.Family, count int, timeout time.Duration) []string
	useV6Binary bool
}

var pingCommands = map[string]pingCommand{
	"linux": {
		binary: "ping",
		buildArgs: func(addr string, family core.Family, count int, timeout time.Duration) []string {
			args := []string{"-n", "-c", strconv.Itoa(count), "-w", deadlineSeconds(timeout)}
			if family == core.FamilyIPv6 {
				args = append(args, "-6")
			}
			return append(args, addr)
		},
	},
	"darwin": {
		binary:      "ping",
		binaryV6:    "ping6",
		useV6Binary: true,
		buildArgs: func(addr string, family core.Family, count int, timeout time.Duration) []string {
			args := []string{"-n", "-c", strconv.Itoa(count)}
			if family != core.FamilyIPv6 {
				args = append(args, "-t", deadlineSeconds(timeout))
			}
			return append(args, addr)
		},
	},
	"windows": {
		binary: "ping",
		buildArgs: func(addr string, family core.Family, count int, timeout time.Duration) []string {
			args := []string{"-n", strconv.Itoa(count), "-w", strconv.FormatInt(timeout.Milliseconds(), 10)}
			if family == core.FamilyIPv6 {
				args = append(args, "-6")
			}
			return append(args, addr)
		},
	},
}

func deadlineSeconds(timeout time.Duration) string {
	secs := int(timeout.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// PingProber shells out to the platform ping binary and parses per-reply
// round-trip times from its output.
type PingProber struct {
	Count   int
	Timeout time.Duration

	command pingCommand
}

// NewPingProber resolves the platform command table for the current OS.
func NewPingProber(count int, timeout time.Duration) (*PingProber, error) {
	return newPingProberFor(runtime.GOOS, count, timeout)
}

func newPingProberFor(goos string, count int, timeout time.Duration) (*PingProber, error) {
	command, ok := pingCommands[goos]
	if !ok {
		return nil, fmt.Errorf("%w: no ping command for platform %s", ErrExecution, goos)
	}
	if count < 1 {
		count = 1
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PingProber{Count: count, Timeout: timeout, command: command}, nil
}

// Probe runs one ping burst and returns the collected samples in order.
// The spawned process is killed when ctx expires.
func (p *PingProber) Probe(ctx context.Context, endpoint core.Endpoint) ([]float64, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: prober is nil", ErrExecution)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	binary := p.command.binary
	if endpoint.Family == core.FamilyIPv6 && p.command.useV6Binary && p.command.binaryV6 != "" {
		binary = p.command.binaryV6
	}
	args := p.command.buildArgs(endpoint.Address, endpoint.Family, p.Count, p.Timeout)

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stdout

	err := cmd.Run()
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrTimeout, endpoint.Address)
	}

	samples := parsePingOutput(stdout.String())
	if len(samples) > 0 {
		// ping exits non-zero on partial packet loss; any parsed sample
		// still counts as a reachable endpoint.
		return samples, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExecution, binary, err)
	}
	return nil, fmt.Errorf("%w: no replies from %s", ErrExecution, endpoint.Address)
}

// rttPattern matches per-reply times on linux/darwin ("time=12.3 ms") and
// windows ("time=12ms", "time<1ms").
var rttPattern = regexp.MustCompile(`time[=<]([0-9]+(?:\.[0-9]+)?)\s*ms`)

func parsePingOutput(output string) []float64 {
	matches := rttPattern.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return nil
	}

	samples := make([]float64, 0, len(matches))
	for _, m := range matches {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		samples = append(samples, value)
	}
	return samples
}
