package core

import "time"

// Family identifies the address family of an endpoint.
type Family string

const (
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
)

// Endpoint is a literal IP address extracted from a channel's stream URL.
// Domain names never become endpoints; extraction rejects them up front.
type Endpoint struct {
	Address string `json:"address"`
	Family  Family `json:"family"`
}

// Channel is a single entry parsed from an upstream playlist.
type Channel struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Logo    string `json:"logo,omitempty"`
	Group   string `json:"group,omitempty"`
	Country string `json:"country,omitempty"`
	Source  string `json:"source,omitempty"`
}

// ProbeResult reports the outcome of probing one endpoint. The result always
// reflects the final attempt; earlier failed attempts only show up in Attempts.
type ProbeResult struct {
	Endpoint  Endpoint  `json:"endpoint"`
	Succeeded bool      `json:"succeeded"`
	SamplesMs []float64 `json:"samples_ms,omitempty"`
	AvgMs     float64   `json:"avg_ms"`
	MinMs     float64   `json:"min_ms"`
	MaxMs     float64   `json:"max_ms"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
}

// Valid reports whether a succeeded probe falls under the latency ceiling.
// Validity is a caller judgment, separate from reachability.
func (r *ProbeResult) Valid(maxLatencyMs float64) bool {
	if r == nil || !r.Succeeded {
		return false
	}
	return r.AvgMs > 0 && r.AvgMs <= maxLatencyMs
}

// ValidationStats summarizes one validation run.
type ValidationStats struct {
	Total          int     `json:"total"`
	Succeeded      int     `json:"succeeded"`
	Failed         int     `json:"failed"`
	Valid          int     `json:"valid"`
	Invalid        int     `json:"invalid"`
	ValidationRate float64 `json:"validation_rate"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	MinLatencyMs   float64 `json:"min_latency_ms"`
	MaxLatencyMs   float64 `json:"max_latency_ms"`
}

// ValidationReport is the immutable outcome of one pipeline run.
type ValidationReport struct {
	RunID       string                  `json:"run_id"`
	Success     bool                    `json:"success"`
	Error       string                  `json:"error,omitempty"`
	Valid       []Endpoint              `json:"valid_endpoints"`
	Invalid     []Endpoint              `json:"invalid_endpoints"`
	Results     map[string]*ProbeResult `json:"results"`
	Stats       ValidationStats         `json:"stats"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt time.Time               `json:"completed_at"`
}

// IsValidEndpoint reports whether the given address validated in this run.
func (r *ValidationReport) IsValidEndpoint(address string) bool {
	if r == nil {
		return false
	}
	for _, ep := range r.Valid {
		if ep.Address == address {
			return true
		}
	}
	return false
}

// FlowStats is a point-in-time snapshot of the flow controller.
type FlowStats struct {
	CurrentConcurrency int           `json:"current_concurrency"`
	ActiveOperations   int           `json:"active_operations"`
	PendingCount       int           `json:"pending_count"`
	IsThrottling       bool          `json:"is_throttling"`
	BackoffDelay       time.Duration `json:"backoff_delay_ms"`
}

// ResourceSample is one reading of system memory and CPU pressure.
type ResourceSample struct {
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	CPUUsedPercent    float64 `json:"cpu_used_percent"`
}

// RunSummary captures metadata about a completed aggregation run.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	Sources        int       `json:"sources"`
	Channels       int       `json:"channels"`
	ValidEndpoints int       `json:"valid_endpoints"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}
