// Package server exposes operational endpoints while a long bulk run is in
// progress.
//
// MetricsServer serves Prometheus metrics on a dedicated port, next to
// liveness and readiness probes:
//
//	/metrics          Prometheus scrape endpoint (global registry)
//	/healthz          liveness
//	/readyz           readiness; turns 503 once shutdown begins
//	/healthz/detailed status and uptime
//
// The OpenTelemetry Prometheus exporter registers its collectors with the
// global Prometheus registry, so the server requires an instrumentation
// provider configured with the prometheus metrics exporter.
package server
