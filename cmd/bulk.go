package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/zoombulk/internal/bulk"
	"github.com/teemow/zoombulk/internal/config"
	"github.com/teemow/zoombulk/internal/logging"
	"github.com/teemow/zoombulk/internal/table"
)

type bulkCreateFlags struct {
	planFile          string
	outFile           string
	reportFile        string
	sheet             string
	dryRun            bool
	maxConcurrency    int
	requestsPerSecond float64
	metricsAddr       string
}

func newBulkCreateCmd() *cobra.Command {
	var flags bulkCreateFlags

	cmd := &cobra.Command{
		Use:   "bulk-create <file.csv|file.xlsx>",
		Short: "Create one meeting per spreadsheet row",
		Long: `Create one meeting per row of a CSV or XLSX file.

Columns are mapped to create meeting parameters by name ("Start Time" becomes
start_time) unless a plan file says otherwise. Each meeting is created for the
row's host_id, else the user with the row's host_email, else the credential's
own user.

Rows are sent concurrently. A failing row does not stop the others; an
authentication failure stops the run. Results are written to
<file>.out.csv next to the input unless --out is given.

Example plan file:

  columns:
    Meeting Topic: topic
    Host: host_email
  start_time:
    date_column: Meeting Date
    time_column: Meeting Time
  duration:
    hours_column: Duration Hr
    minutes_column: Duration Min
  skip_if_empty: Meeting Date
  output:
    join_url: Meeting URL
    id: Meeting ID`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-concurrency") {
				flags.maxConcurrency = 0
			}
			if !cmd.Flags().Changed("rps") {
				flags.requestsPerSecond = -1
			}
			return runBulkCreate(cmd.Context(), cmd.OutOrStdout(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.planFile, "plan", "p", "", "YAML plan describing column mapping, derived fields and output columns")
	cmd.Flags().StringVarP(&flags.outFile, "out", "o", "", "Results CSV (default: <input>.out.csv)")
	cmd.Flags().StringVar(&flags.reportFile, "report", "", "Write the JSON report to this file, or - for stdout")
	cmd.Flags().StringVar(&flags.sheet, "sheet", "", "XLSX sheet to read (default: first sheet)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Show the parameters each row would be sent with, without calling the API")
	cmd.Flags().IntVar(&flags.maxConcurrency, "max-concurrency", bulk.DefaultMaxConcurrency, "Maximum create meeting calls in flight. Can also use ZOOM_MAX_CONCURRENCY env var.")
	cmd.Flags().Float64Var(&flags.requestsPerSecond, "rps", 0, "Maximum create meeting calls per second, 0 for no limit. Can also use ZOOM_REQUESTS_PER_SECOND env var.")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090). Can also use METRICS_ADDR env var.")

	return cmd
}

func runBulkCreate(ctx context.Context, out io.Writer, input string, flags bulkCreateFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	plan := bulk.DefaultPlan()
	if flags.planFile != "" {
		var err error
		if plan, err = bulk.LoadPlan(flags.planFile); err != nil {
			return err
		}
	}

	rows, err := readRows(ctx, input, flags.sheet)
	if err != nil {
		return err
	}
	logger.Info("rows loaded", "file", filepath.Base(input), "rows", len(rows))

	if flags.metricsAddr == "" {
		flags.metricsAddr = os.Getenv("METRICS_ADDR")
	}
	a, err := newApp(ctx, cfg, logger, appOptions{api: !flags.dryRun, metricsAddr: flags.metricsAddr})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown failed", logging.Err(err))
		}
	}()

	var d *bulk.Dispatcher
	if flags.dryRun {
		d = bulk.NewDispatcher(nil, bulk.WithLogger(logger))
	} else {
		d = bulk.NewDispatcher(a.client,
			bulk.WithResolver(a.index),
			bulk.WithTokens(a.tokens),
			bulk.WithMetrics(a.provider.Metrics()),
			bulk.WithLogger(logger),
		)
	}

	report, err := d.BulkCreate(ctx, rows, bulkOptions(plan, cfg, flags))
	if report == nil {
		return err
	}

	if !flags.dryRun {
		outFile := flags.outFile
		if outFile == "" {
			outFile = table.OutputPath(input)
		}
		if werr := table.WriteCSVFile(outFile, rows); werr != nil {
			return werr
		}
		fmt.Fprintf(out, "Results written to %s\n", outFile)
	}

	if rerr := writeReport(out, flags.reportFile, report); rerr != nil {
		return rerr
	}
	printSummary(out, report)

	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d rows failed", report.Failed, report.Total)
	}
	return nil
}

func readRows(ctx context.Context, path, sheet string) ([]*table.Row, error) {
	reader, err := table.Open(path)
	if err != nil {
		return nil, err
	}
	if x, ok := reader.(*table.XLSXReader); ok {
		x.Sheet = sheet
	} else if sheet != "" {
		return nil, fmt.Errorf("--sheet only applies to XLSX files")
	}
	return reader.Read(ctx)
}

// bulkOptions layers the settings: plan file first, then environment,
// then explicitly set flags.
func bulkOptions(plan *bulk.Plan, cfg config.Config, flags bulkCreateFlags) bulk.Options {
	opts := plan.Options()
	opts.DryRun = flags.dryRun

	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = cfg.MaxConcurrency
	}
	if flags.maxConcurrency > 0 {
		opts.MaxConcurrency = flags.maxConcurrency
	}

	opts.RequestsPerSecond = cfg.RequestsPerSecond
	if flags.requestsPerSecond >= 0 {
		opts.RequestsPerSecond = flags.requestsPerSecond
	}

	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = cfg.DefaultTimezone
	}
	return opts
}

func writeReport(out io.Writer, path string, report *bulk.Report) error {
	switch path {
	case "":
		return nil
	case "-":
		_, err := fmt.Fprintln(out, report.JSON())
		return err
	default:
		if err := os.WriteFile(path, []byte(report.JSON()+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}
}

func printSummary(out io.Writer, report *bulk.Report) {
	mode := ""
	if report.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(out, "\nBatch %s%s: %d rows, %d succeeded, %d failed, %d skipped\n",
		report.BatchID, mode, report.Total, report.Successful, report.Failed, report.Skipped)

	if report.DryRun {
		for _, o := range report.Outcomes {
			if o.State == bulk.StateDryRun {
				fmt.Fprintf(out, "  row %d: %s\n", o.Row.Index, formatParams(o.Params))
			}
		}
	}

	for _, o := range report.Failures() {
		fmt.Fprintf(out, "  row %d [%s]: %v\n", o.Row.Index, o.Kind, o.Err)
	}
}
