// Package metrics provides Prometheus instrumentation for the video
// vault application.
//
// All metrics are prefixed with "video_vault_" to avoid naming
// collisions with other applications, and fall into these categories:
//
// ## HTTP Metrics
//
// Track HTTP request performance and error rates:
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Database Metrics
//
// Monitor database query performance and connections:
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBConnectionsOpen: Gauge of open database connections
//
// ## Upload and Transcode Metrics
//
// Track the ingestion pipeline:
//   - UploadsTotal: Counter of upload attempts by outcome
//     (success/rejected/transcode_failed/error)
//   - UploadBytesTotal: Counter of bytes accepted from uploads
//   - TranscodesTotal: Counter of transcode invocations by status
//   - TranscodeDuration: Histogram of transcode wall-clock duration
//   - VideosStored: Gauge of video records currently stored
//
// ## Authentication Metrics
//
// Track authentication activity:
//   - AuthAttemptsTotal: Counter by result (success/failure)
//   - SessionsActive: Gauge of active (unexpired) sessions
//
// # Usage
//
// Metrics are automatically registered with the default Prometheus
// registry using promauto. To expose them, mount promhttp.Handler() on
// the metrics endpoint:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// To record metrics from other packages, import this package and use the
// exported metric variables:
//
//	import "video-vault/internal/metrics"
//
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/videos", "200").Inc()
//	metrics.UploadBytesTotal.Add(float64(size))
//	metrics.VideosStored.Set(float64(count))
//
// # Prometheus Queries
//
// Example PromQL queries for common use cases:
//
// Request rate by endpoint:
//
//	sum(rate(video_vault_http_requests_total[5m])) by (path)
//
// P95 response time:
//
//	histogram_quantile(0.95, sum(rate(video_vault_http_request_duration_seconds_bucket[5m])) by (le))
//
// Upload failure rate:
//
//	sum(rate(video_vault_uploads_total{status!="success"}[5m])) /
//	sum(rate(video_vault_uploads_total[5m]))
//
// Database query latency by operation:
//
//	histogram_quantile(0.95, sum(rate(video_vault_db_query_duration_seconds_bucket[5m])) by (le, operation))
package metrics
