// Package instrumentation provides OpenTelemetry metrics and tracing for zoombulk.
//
// # Metrics
//
// Zoom API:
//   - zoom_api_requests_total: Counter of API calls by operation and status
//   - zoom_api_request_duration_seconds: Histogram of API call durations
//
// Auth and caches:
//   - oauth_token_refresh_total: Counter of access token exchanges by result
//   - cache_lookups_total: Counter of token/users cache lookups by result
//   - identity_index_rebuilds_total: Counter of email index rebuilds by reason
//
// Bulk dispatch:
//   - bulk_rows_total: Counter of rows by terminal state
//   - bulk_rows_in_flight: Gauge of rows currently dispatched
//   - bulk_batch_duration_seconds: Histogram of batch durations
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: zoombulk)
//
// A nil *Metrics is a valid no-op recorder, so components accept metrics as
// an optional dependency.
package instrumentation
