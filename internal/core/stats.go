package core

import "math"

// Summarize reduces a set of probe results into validation statistics.
// It is a pure function: no I/O, identical output for identical input.
// Latency aggregates cover the valid subset only.
func Summarize(results []*ProbeResult, maxLatencyMs float64) ValidationStats {
	stats := ValidationStats{}

	var latencySum float64
	for _, r := range results {
		if r == nil {
			continue
		}
		stats.Total++

		if !r.Succeeded {
			stats.Failed++
			continue
		}
		stats.Succeeded++

		if !r.Valid(maxLatencyMs) {
			stats.Invalid++
			continue
		}

		stats.Valid++
		latencySum += r.AvgMs
		if stats.Valid == 1 || r.AvgMs < stats.MinLatencyMs {
			stats.MinLatencyMs = r.AvgMs
		}
		if r.AvgMs > stats.MaxLatencyMs {
			stats.MaxLatencyMs = r.AvgMs
		}
	}

	if stats.Valid > 0 {
		stats.AvgLatencyMs = math.Round(latencySum/float64(stats.Valid)*10) / 10
	}
	if stats.Total > 0 {
		stats.ValidationRate = math.Round(float64(stats.Valid)/float64(stats.Total)*1000) / 10
	}

	return stats
}
