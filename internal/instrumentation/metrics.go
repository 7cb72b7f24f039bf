package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrOperation = "operation"
	attrStatus    = "status"
	attrResult    = "result"
	attrCache     = "cache"
	attrReason    = "reason"
	attrState     = "state"
)

// Metrics provides methods for recording observability metrics.
// The zero value and a nil *Metrics are both valid no-op recorders.
type Metrics struct {
	// Zoom API metrics
	apiRequestsTotal   metric.Int64Counter
	apiRequestDuration metric.Float64Histogram

	// OAuth metrics
	tokenRefreshTotal metric.Int64Counter

	// Cache metrics
	cacheLookupsTotal metric.Int64Counter
	indexRebuildTotal metric.Int64Counter

	// Bulk dispatch metrics
	bulkRowsTotal     metric.Int64Counter
	bulkInFlight      metric.Int64UpDownCounter
	bulkBatchDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.apiRequestsTotal, err = meter.Int64Counter(
		"zoom_api_requests_total",
		metric.WithDescription("Total number of Zoom API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zoom_api_requests_total counter: %w", err)
	}

	m.apiRequestDuration, err = meter.Float64Histogram(
		"zoom_api_request_duration_seconds",
		metric.WithDescription("Zoom API request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zoom_api_request_duration_seconds histogram: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of access token exchanges"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.cacheLookupsTotal, err = meter.Int64Counter(
		"cache_lookups_total",
		metric.WithDescription("Total number of local cache lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_lookups_total counter: %w", err)
	}

	m.indexRebuildTotal, err = meter.Int64Counter(
		"identity_index_rebuilds_total",
		metric.WithDescription("Total number of email to user id index rebuilds"),
		metric.WithUnit("{rebuild}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity_index_rebuilds_total counter: %w", err)
	}

	m.bulkRowsTotal, err = meter.Int64Counter(
		"bulk_rows_total",
		metric.WithDescription("Total number of bulk rows by terminal state"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk_rows_total counter: %w", err)
	}

	m.bulkInFlight, err = meter.Int64UpDownCounter(
		"bulk_rows_in_flight",
		metric.WithDescription("Number of bulk rows currently dispatched"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk_rows_in_flight gauge: %w", err)
	}

	m.bulkBatchDuration, err = meter.Float64Histogram(
		"bulk_batch_duration_seconds",
		metric.WithDescription("Bulk batch duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 900.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk_batch_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordAPIRequest records a Zoom API call with operation, status and duration.
//
// Parameters:
//   - operation: API operation (list_users, create_meeting, token)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the call
func (m *Metrics) RecordAPIRequest(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.apiRequestsTotal == nil || m.apiRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)

	m.apiRequestsTotal.Add(ctx, 1, attrs)
	m.apiRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTokenRefresh records an access token exchange with its result.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.tokenRefreshTotal == nil {
		return
	}
	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordCacheLookup records a hit or miss against one of the local caches.
func (m *Metrics) RecordCacheLookup(ctx context.Context, cache, result string) {
	if m == nil || m.cacheLookupsTotal == nil {
		return
	}
	m.cacheLookupsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrCache, cache),
		attribute.String(attrResult, result),
	))
}

// RecordIndexRebuild records an identity index rebuild and why it happened.
func (m *Metrics) RecordIndexRebuild(ctx context.Context, reason string) {
	if m == nil || m.indexRebuildTotal == nil {
		return
	}
	m.indexRebuildTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordBulkRow records a bulk row reaching a terminal state.
func (m *Metrics) RecordBulkRow(ctx context.Context, state string) {
	if m == nil || m.bulkRowsTotal == nil {
		return
	}
	m.bulkRowsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrState, state)))
}

// IncrementInFlight marks a bulk row as dispatched.
func (m *Metrics) IncrementInFlight(ctx context.Context) {
	if m == nil || m.bulkInFlight == nil {
		return
	}
	m.bulkInFlight.Add(ctx, 1)
}

// DecrementInFlight marks a dispatched bulk row as resolved.
func (m *Metrics) DecrementInFlight(ctx context.Context) {
	if m == nil || m.bulkInFlight == nil {
		return
	}
	m.bulkInFlight.Add(ctx, -1)
}

// RecordBatch records the wall-clock duration of a bulk batch.
func (m *Metrics) RecordBatch(ctx context.Context, dryRun bool, duration time.Duration) {
	if m == nil || m.bulkBatchDuration == nil {
		return
	}
	m.bulkBatchDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("dry_run", dryRun)))
}
