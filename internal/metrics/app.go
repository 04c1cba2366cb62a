// Package metrics emits application telemetry through the shared telemetry
// system. All emitters are no-ops until observability.InitMetrics runs.
package metrics

import (
	"time"

	"github.com/streamlens/streamlens/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Probe metrics
	ProbesTotal     = "app_probes_total"
	ProbeLatency    = "app_probe_latency_ms"
	ProbeRetries    = "app_probe_retries_total"
	RunsTotal       = "app_validation_runs_total"
	ValidEndpoints  = "app_valid_endpoints"
	SourceFetches   = "app_source_fetches_total"
	ThrottleEvents  = "app_flow_throttle_events_total"
	ConcurrencyCeil = "app_flow_concurrency_ceiling"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordProbe records one endpoint probe outcome, its average latency, and
// how many retry attempts it burned.
func RecordProbe(success bool, avgMs float64, attempts int) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ProbesTotal,
			1,
			map[string]string{"status": status},
		)
		for range attempts - 1 {
			_ = observability.TelemetrySystem.Counter(ProbeRetries, 1, nil)
		}
		if success && avgMs > 0 {
			_ = observability.TelemetrySystem.Histogram(
				ProbeLatency,
				time.Duration(avgMs*float64(time.Millisecond)),
				nil,
			)
		}
	}
}

// RecordRun records a completed validation run.
func RecordRun(success bool, valid int) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RunsTotal,
			1,
			map[string]string{"status": status},
		)
		_ = observability.TelemetrySystem.Gauge(ValidEndpoints, float64(valid), nil)
	}
}

// RecordSourceFetch records one upstream playlist fetch.
func RecordSourceFetch(source string, success, fromCache bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	origin := "network"
	if fromCache {
		origin = "cache"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SourceFetches,
			1,
			map[string]string{
				"source": source,
				"status": status,
				"origin": origin,
			},
		)
	}
}

// RecordThrottleEvent records a flow controller state transition.
func RecordThrottleEvent(throttling bool) {
	direction := "recovered"
	if throttling {
		direction = "throttled"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ThrottleEvents,
			1,
			map[string]string{"direction": direction},
		)
	}
}

// SetConcurrencyCeiling publishes the controller's current ceiling.
func SetConcurrencyCeiling(ceiling int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ConcurrencyCeil, float64(ceiling), nil)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
