package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// asset upload attempts
	UploadAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_upload_attempts_total",
			Help: "Asset store upload attempts by outcome",
		},
		[]string{"outcome"}, // outcome: success, retry, name_resolution, exhausted, canceled, invalid
	)

	// asset upload latency in seconds, retries included
	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_upload_duration_seconds",
			Help:    "End-to-end upload latency including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"status"},
	)

	BatchUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_batch_uploads_total",
			Help: "Batch uploads by status",
		},
		[]string{"status"},
	)

	// OAuth2 token exchanges
	TokenExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_token_exchanges_total",
			Help: "Refresh-token exchanges against the identity provider",
		},
		[]string{"status"},
	)

	// email send attempts
	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_deliveries_total",
			Help: "Send attempts by status and mode",
		},
		[]string{"status", "mode"}, // mode: live, mock
	)

	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "email_audit_write_failures_total",
			Help: "Delivery records that could not be persisted",
		},
	)

	// HTTP request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	SlowQueries = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of queries slower than the tracer threshold",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		},
		[]string{"command"},
	)
)

func IncrementUploadAttempt(outcome string) {
	UploadAttempts.WithLabelValues(outcome).Inc()
}

func RecordUploadDuration(status string, duration time.Duration) {
	UploadDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func IncrementBatchUpload(status string) {
	BatchUploads.WithLabelValues(status).Inc()
}

func IncrementTokenExchange(status string) {
	TokenExchanges.WithLabelValues(status).Inc()
}

func IncrementEmailDelivery(status, mode string) {
	EmailDeliveries.WithLabelValues(status, mode).Inc()
}

func IncrementAuditWriteFailure() {
	AuditWriteFailures.Inc()
}

// RecordHTTPRequestDuration observes one request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementSlowQuery(command string, duration time.Duration) {
	SlowQueries.WithLabelValues(command).Observe(duration.Seconds())
}
