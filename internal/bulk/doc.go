// Package bulk creates Zoom meetings from tabular rows.
//
// A run has two phases. Every row is first normalized in input order: an
// optional ProcessRow hook may derive fields or skip the row, then the
// row's columns are mapped to create meeting parameters. Normalized rows
// are then dispatched concurrently under a fixed bound. Each successful
// call passes the created meeting to an optional UpdateRow hook, which
// typically writes the join URL and meeting ID back into the row.
//
// Per-row failures (rejected calls, unknown host emails, rows missing
// required parameters) are recorded in that row's Outcome and never stop
// the batch. Only an authentication failure aborts it.
//
// Outcomes are reported in input order regardless of completion order.
package bulk
