package bulk

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/teemow/zoombulk/internal/table"
	"github.com/teemow/zoombulk/internal/zoom"
)

// State is the terminal state of a dispatched row.
type State string

// Row states. Skipped rows have no Outcome and are listed in
// Report.SkippedRows instead.
const (
	StateDryRun  State = "dry_run"
	StateSuccess State = "success"
	StateFailed  State = "failed"
	StateSkipped State = "skipped"
)

// Outcome is the result of one non-skipped row.
type Outcome struct {
	Row     *table.Row
	State   State
	Params  zoom.Params
	Meeting *zoom.Meeting
	Err     error
	Kind    Kind
}

// Succeeded reports whether the row succeeded, including dry runs.
func (o Outcome) Succeeded() bool {
	return o.State == StateSuccess || o.State == StateDryRun
}

type outcomeJSON struct {
	Row       int         `json:"row"`
	Status    State       `json:"status"`
	MeetingID int64       `json:"meeting_id,omitempty"`
	JoinURL   string      `json:"join_url,omitempty"`
	Params    zoom.Params `json:"params,omitempty"`
	Kind      Kind        `json:"kind,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// MarshalJSON renders the outcome for reports.
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{
		Status: o.State,
		Kind:   o.Kind,
	}
	if o.Row != nil {
		out.Row = o.Row.Index
	}
	if o.Meeting != nil {
		out.MeetingID = o.Meeting.ID
		out.JoinURL = o.Meeting.JoinURL
	}
	if o.State == StateDryRun || o.State == StateFailed {
		out.Params = o.Params
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}

// Report aggregates the outcomes of one bulk run.
type Report struct {
	BatchID     uuid.UUID `json:"batch_id"`
	DryRun      bool      `json:"dry_run"`
	Total       int       `json:"total"`
	Successful  int       `json:"successful"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	SkippedRows []int     `json:"skipped_rows,omitempty"`
	Outcomes    []Outcome `json:"results"`
}

func newReport(dryRun bool) *Report {
	return &Report{
		BatchID: uuid.New(),
		DryRun:  dryRun,
	}
}

// tally recomputes the counters from the outcomes.
func (r *Report) tally() {
	r.Total = len(r.Outcomes)
	r.Successful, r.Failed = 0, 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			r.Successful++
		} else {
			r.Failed++
		}
	}
	r.Skipped = len(r.SkippedRows)
}

// Failures returns the failed outcomes in input order.
func (r *Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.State == StateFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// JSON returns the report as indented JSON.
func (r *Report) JSON() string {
	jsonBytes, _ := json.MarshalIndent(r, "", "  ")
	return string(jsonBytes)
}
