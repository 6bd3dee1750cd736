// Package telemetry provides application-level observability for the church registry.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<CHR_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format and is intended to be scraped by a Prometheus server every 15–60 seconds.
// It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Audit trail write/drop counters (the audit recorder is a lossy side channel,
//     so the dropped counter is the primary alert signal for queue sizing)
//   - Archive create/restore/failure counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as
// /api/church-records/members/getMemberById/:id) rather than the raw request URL to
// prevent unbounded label cardinality from user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/church-registry/church-registry/internal/safego"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Audit trail metrics, recorded by the audit recorder worker.
//
// AuditLogsWrittenTotal is a CounterVec with labels {action_type, status}. A
// sustained gap between http_requests_total and audit_logs_written_total for
// authenticated traffic indicates either queue drops or database write failures.
//
// AuditQueueDroppedTotal counts entries discarded because the recorder queue was
// full. The queue is lossy: audit logging must never block request
// handling. Alert on increase(audit_queue_dropped_total[5m]) > 0 and raise
// audit.queue_size if it fires under normal load.
var (
	AuditLogsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_logs_written_total",
			Help: "Total number of audit log rows successfully written, by action type and status.",
		},
		[]string{"action_type", "status"},
	)

	AuditLogFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_log_failures_total",
			Help: "Total number of audit log writes that failed at the database.",
		},
	)

	AuditQueueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_queue_dropped_total",
			Help: "Total number of audit entries dropped because the recorder queue was full.",
		},
	)
)

// Archive metrics, recorded by the archive-before-delete helper and the restore endpoint.
//
// ArchiveFailuresTotal counts best-effort archival attempts that failed. These do
// not fail the enclosing delete, so this counter is the only operational signal
// that deleted rows are going unsnapshotted.
var (
	ArchivesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archives_created_total",
			Help: "Total number of rows snapshotted into the archive before deletion, by source table.",
		},
		[]string{"original_table"},
	)

	ArchiveFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_failures_total",
			Help: "Total number of failed archive attempts, by source table.",
		},
		[]string{"original_table"},
	)

	ArchiveRestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_restores_total",
			Help: "Total number of archive restore operations, by source table and outcome.",
		},
		[]string{"original_table", "outcome"},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and exports them as Prometheus gauges. The goroutine
// runs for the lifetime of the process.
func StartDBStatsCollector(db *sql.DB) {
	safego.Go("db-stats", func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			if stats.WaitCount > 0 {
				slog.Debug("db pool wait observed", "wait_count", stats.WaitCount, "wait_duration", stats.WaitDuration)
			}
		}
	})
}
