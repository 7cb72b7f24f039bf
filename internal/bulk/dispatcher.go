package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/teemow/zoombulk/internal/directory"
	"github.com/teemow/zoombulk/internal/instrumentation"
	"github.com/teemow/zoombulk/internal/logging"
	"github.com/teemow/zoombulk/internal/table"
	"github.com/teemow/zoombulk/internal/zoom"
)

// DefaultMaxConcurrency bounds in-flight create meeting calls.
const DefaultMaxConcurrency = 10

// ErrNotDispatched marks rows that were never sent because the run was
// canceled or aborted first.
var ErrNotDispatched = errors.New("row not dispatched")

// MeetingCreator creates one meeting.
type MeetingCreator interface {
	CreateMeeting(ctx context.Context, userID string, params zoom.Params) (*zoom.Meeting, error)
}

// HostResolver maps a host email to a user ID.
type HostResolver interface {
	Resolve(ctx context.Context, email string) (string, error)
}

// TokenProvider hands out access tokens.
type TokenProvider interface {
	AccessToken(ctx context.Context, forceRefresh bool) (*oauth2.Token, error)
}

// Options control one BulkCreate run.
type Options struct {
	// ColumnToParam maps column headers to parameter names.
	ColumnToParam map[string]string
	ProcessRow    ProcessRowFunc
	// UpdateRow is called once per successful row, after its call returns.
	// Calls are serialized.
	UpdateRow UpdateRowFunc
	// DryRun normalizes rows and reports the would-be parameters without
	// any network call.
	DryRun bool
	// MaxConcurrency defaults to DefaultMaxConcurrency.
	MaxConcurrency int
	// RequestsPerSecond caps the call rate when positive.
	RequestsPerSecond float64
	// DefaultTimezone is used for rows without a timezone.
	DefaultTimezone string
	// Required parameters; nil means DefaultRequired.
	Required []string
}

// Dispatcher runs bulk meeting creation.
type Dispatcher struct {
	creator  MeetingCreator
	resolver HostResolver
	tokens   TokenProvider
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithResolver sets how host_email parameters are resolved.
func WithResolver(r HostResolver) DispatcherOption {
	return func(d *Dispatcher) {
		d.resolver = r
	}
}

// WithTokens makes BulkCreate obtain a token before dispatching, so bad
// credentials fail the run before any row is attempted.
func WithTokens(t TokenProvider) DispatcherOption {
	return func(d *Dispatcher) {
		d.tokens = t
	}
}

// WithMetrics records per-row and per-batch metrics.
func WithMetrics(m *instrumentation.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher that creates meetings with creator.
func NewDispatcher(creator MeetingCreator, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{creator: creator}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.WithOperation(d.logger, "bulk")
	return d
}

type job struct {
	slot   int
	row    *table.Row
	params zoom.Params
}

// BulkCreate creates one meeting per non-skipped row.
//
// The returned report has one outcome per non-skipped row, in input order.
// Per-row failures are recorded in the outcomes. An error is returned only
// when the run is aborted by an authentication failure: before dispatch the
// report is nil, during dispatch it holds the rows handled so far and the
// remaining rows are marked canceled.
//
// Cancelling ctx stops further rows from being launched; calls already in
// flight run to completion.
func (d *Dispatcher) BulkCreate(ctx context.Context, rows []*table.Row, opts Options) (report *Report, err error) {
	report = newReport(opts.DryRun)
	logger := d.logger.With(logging.Batch(report.BatchID.String()))

	ctx, span := instrumentation.StartSpan(ctx, "bulk.create",
		attribute.String(instrumentation.SpanAttrBatchID, report.BatchID.String()),
		attribute.Int(instrumentation.SpanAttrRows, len(rows)),
		attribute.Bool(instrumentation.SpanAttrDryRun, opts.DryRun),
	)
	start := time.Now()
	defer func() {
		d.metrics.RecordBatch(ctx, opts.DryRun, time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	norm := Normalizer{
		ColumnToParam:   opts.ColumnToParam,
		ProcessRow:      opts.ProcessRow,
		DefaultTimezone: opts.DefaultTimezone,
		Required:        opts.Required,
	}

	var jobs []job
	for _, row := range rows {
		if row == nil {
			continue
		}
		params, included, nerr := norm.Normalize(row)
		if !included {
			report.SkippedRows = append(report.SkippedRows, row.Index)
			d.metrics.RecordBulkRow(ctx, string(StateSkipped))
			logger.Debug("row skipped", logging.Row(row.Index))
			continue
		}

		slot := len(report.Outcomes)
		report.Outcomes = append(report.Outcomes, Outcome{Row: row, Params: params})

		switch {
		case nerr != nil:
			d.fail(ctx, logger, &report.Outcomes[slot], nerr)
		case opts.DryRun:
			report.Outcomes[slot].State = StateDryRun
			d.metrics.RecordBulkRow(ctx, string(StateDryRun))
		default:
			jobs = append(jobs, job{slot: slot, row: row, params: params})
		}
	}

	if len(jobs) > 0 && d.tokens != nil {
		if _, err := d.tokens.AccessToken(ctx, false); err != nil {
			logger.Error("bulk run aborted", logging.Err(err))
			return nil, err
		}
	}

	err = d.dispatch(ctx, logger, report, jobs, opts)
	report.tally()

	logger.Info("bulk run finished",
		"total", report.Total,
		"successful", report.Successful,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"dry_run", report.DryRun,
		"duration", time.Since(start),
	)
	return report, err
}

func (d *Dispatcher) dispatch(ctx context.Context, logger *slog.Logger, report *Report, jobs []job, opts Options) error {
	if len(jobs) == 0 {
		return nil
	}

	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	launched := make([]bool, len(jobs))
	var updateMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
			}
			launched[i] = true

			outcome := &report.Outcomes[j.slot]
			meeting, err := d.createOne(context.WithoutCancel(gctx), j)
			if err != nil {
				kind := d.fail(gctx, logger, outcome, err)
				if kind == KindAuth {
					return err
				}
				return nil
			}

			if opts.UpdateRow != nil {
				updateMu.Lock()
				opts.UpdateRow(j.row, meeting)
				updateMu.Unlock()
			}
			outcome.State = StateSuccess
			outcome.Meeting = meeting
			d.metrics.RecordBulkRow(gctx, string(StateSuccess))
			logger.Debug("meeting created", logging.Row(j.row.Index), "meeting_id", meeting.ID)
			return nil
		})
	}

	err := g.Wait()

	cause := err
	if cause == nil {
		cause = context.Cause(ctx)
	}
	if cause == nil {
		cause = context.Canceled
	}
	for i, j := range jobs {
		if !launched[i] {
			outcome := &report.Outcomes[j.slot]
			outcome.State = StateFailed
			outcome.Kind = KindCanceled
			outcome.Err = fmt.Errorf("%w: %w", ErrNotDispatched, cause)
			d.metrics.RecordBulkRow(ctx, string(StateFailed))
		}
	}

	if err != nil {
		logger.Error("bulk run aborted", logging.Err(err))
	}
	return err
}

// createOne selects the host and creates the row's meeting. host_id wins
// over host_email; without either the meeting is created for "me".
func (d *Dispatcher) createOne(ctx context.Context, j job) (*zoom.Meeting, error) {
	d.metrics.IncrementInFlight(ctx)
	defer d.metrics.DecrementInFlight(ctx)

	userID := j.params.String(zoom.ParamHostID)
	if userID == "" {
		if email := j.params.String(zoom.ParamHostEmail); email != "" {
			if d.resolver == nil {
				return nil, &directory.ResolutionError{Email: email, Err: errors.New("no user directory configured")}
			}
			id, err := d.resolver.Resolve(ctx, email)
			if err != nil {
				return nil, err
			}
			userID = id
		}
	}
	if userID == "" {
		userID = "me"
	}

	ctx, span := instrumentation.StartSpan(ctx, "bulk.row", attribute.Int(instrumentation.SpanAttrRow, j.row.Index))
	meeting, err := d.creator.CreateMeeting(ctx, userID, j.params)
	instrumentation.EndSpan(span, err)
	return meeting, err
}

// fail records a failed outcome and returns its kind.
func (d *Dispatcher) fail(ctx context.Context, logger *slog.Logger, o *Outcome, err error) Kind {
	o.State = StateFailed
	o.Err = err
	o.Kind = Classify(err)
	d.metrics.RecordBulkRow(ctx, string(StateFailed))

	attrs := []any{logging.Row(o.Row.Index), "kind", string(o.Kind)}
	var resErr *directory.ResolutionError
	if errors.As(err, &resErr) {
		// the report keeps the address, logs only its hash
		attrs = append(attrs, logging.UserHash(resErr.Email), logging.Err(errors.Unwrap(resErr)))
	} else {
		attrs = append(attrs, logging.Err(err))
	}
	logger.Warn("row failed", attrs...)
	return o.Kind
}
