package metrics

import (
	"time"

	"github.com/merdocx/easy-pass-bot-sub000/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Pass lifecycle metrics
	PassOperationsTotal = "app_pass_operations_total"

	// Resilience metrics
	ThrottleRejectsTotal    = "app_throttle_rejects_total"
	BreakerTransitionsTotal = "app_breaker_transitions_total"
	RetryAttemptsTotal      = "app_retry_attempts_total"

	// Archive metrics
	ArchiveCyclesTotal   = "app_archive_cycles_total"
	ArchivedRecordsLast  = "app_archived_records_last"
	ArchiveCycleDuration = "app_archive_cycle_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordPassOperation records a pass lifecycle operation with status
func RecordPassOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			PassOperationsTotal,
			1,
			map[string]string{
				"operation": operation,
				"status":    status,
			},
		)
	}
}

// RecordThrottleReject records a request rejected by the rate limiter
func RecordThrottleReject(actorKind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ThrottleRejectsTotal,
			1,
			map[string]string{
				"actor_kind": actorKind,
			},
		)
	}
}

// RecordBreakerTransition records a circuit breaker state change
func RecordBreakerTransition(name string, from string, to string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			BreakerTransitionsTotal,
			1,
			map[string]string{
				"breaker": name,
				"from":    from,
				"to":      to,
			},
		)
	}
}

// RecordRetryAttempt records a retried operation attempt
func RecordRetryAttempt(operation string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RetryAttemptsTotal,
			1,
			map[string]string{
				"operation": operation,
			},
		)
	}
}

// RecordArchiveCycle records an archivist sweep with its outcome
func RecordArchiveCycle(success bool, archived int, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ArchiveCyclesTotal,
			1,
			map[string]string{
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Gauge(
			ArchivedRecordsLast,
			float64(archived),
			nil,
		)

		_ = observability.TelemetrySystem.Histogram(
			ArchiveCycleDuration,
			duration,
			nil,
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
