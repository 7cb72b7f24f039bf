package bulk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teemow/zoombulk/internal/table"
	"github.com/teemow/zoombulk/internal/zoom"
)

// DefaultStartTimeLayout parses a date such as "2024-05-01" followed by a
// 12-hour clock time such as "9:30 AM".
const DefaultStartTimeLayout = "2006-01-02 3:04 PM"

// Plan is a declarative description of how to turn spreadsheet rows into
// meetings, loaded from YAML. It provides the ProcessRow and UpdateRow
// hooks for command line runs.
//
//	columns:
//	  Meeting Topic: topic
//	  Host: host_email
//	start_time:
//	  date_column: Meeting Date
//	  time_column: Meeting Time
//	duration:
//	  hours_column: Duration Hr
//	  minutes_column: Duration Min
//	skip_if_empty: [Meeting Date]
//	output:
//	  join_url: Meeting URL
//	  id: Meeting ID
//	  password: Passcode
type Plan struct {
	Columns        map[string]string `yaml:"columns"`
	Timezone       string            `yaml:"timezone"`
	StartTime      *StartTimeRule    `yaml:"start_time"`
	Duration       *DurationRule     `yaml:"duration"`
	SkipIfEmpty    StringList        `yaml:"skip_if_empty"`
	Required       StringList        `yaml:"required"`
	Output         OutputMapping     `yaml:"output"`
	MaxConcurrency int               `yaml:"max_concurrency"`
}

// StartTimeRule combines a date column and an optional time column into a
// start_time field.
type StartTimeRule struct {
	DateColumn string `yaml:"date_column"`
	TimeColumn string `yaml:"time_column"`
	// Layout is a Go time layout. Defaults to DefaultStartTimeLayout, or
	// its date part when there is no time column.
	Layout string `yaml:"layout"`
	// Column receives the parsed time. Defaults to "start_time".
	Column string `yaml:"column"`
}

// DurationRule computes a duration in minutes from hour and minute columns.
type DurationRule struct {
	HoursColumn   string `yaml:"hours_column"`
	MinutesColumn string `yaml:"minutes_column"`
	// Column receives the minutes. Defaults to "duration".
	Column string `yaml:"column"`
}

// OutputField copies one meeting response field into a row column.
type OutputField struct {
	Field  string
	Column string
}

// OutputMapping keeps the order the fields were written in.
type OutputMapping []OutputField

// UnmarshalYAML reads a mapping of response field to column name.
func (m *OutputMapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: output must be a mapping of response field to column", node.Line)
	}
	out := make(OutputMapping, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: output entries must be scalars", k.Line)
		}
		out = append(out, OutputField{Field: k.Value, Column: v.Value})
	}
	*m = out
	return nil
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return fmt.Errorf("line %d: value cannot be empty", node.Line)
		}
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return fmt.Errorf("line %d: must be a string or list of strings: %w", node.Line, err)
		}
		for i, item := range items {
			if item == "" {
				return fmt.Errorf("line %d: item %d cannot be empty", node.Line, i)
			}
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: must be a string or list of strings", node.Line)
	}
}

// DefaultOutput writes back the join URL, meeting ID and passcode.
var DefaultOutput = OutputMapping{
	{Field: "join_url", Column: "Meeting URL"},
	{Field: "id", Column: "Meeting ID"},
	{Field: "password", Column: "Passcode"},
}

// DefaultPlan maps columns by name and writes back DefaultOutput.
func DefaultPlan() *Plan {
	return &Plan{Output: DefaultOutput}
}

// LoadPlan reads a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return plan, nil
}

// ParsePlan decodes and validates a YAML plan. Unknown keys are rejected.
func ParsePlan(data []byte) (*Plan, error) {
	plan := &Plan{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(plan); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if plan.Output == nil {
		plan.Output = DefaultOutput
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate checks the plan for inconsistent settings.
func (p *Plan) Validate() error {
	var errs []error
	for col, param := range p.Columns {
		if !zoom.IsCreateMeetingParam(param) {
			errs = append(errs, fmt.Errorf("column %q maps to unknown parameter %q", col, param))
		}
	}
	if p.StartTime != nil && p.StartTime.DateColumn == "" {
		errs = append(errs, errors.New("start_time.date_column is required"))
	}
	if p.Duration != nil && p.Duration.HoursColumn == "" && p.Duration.MinutesColumn == "" {
		errs = append(errs, errors.New("duration needs hours_column or minutes_column"))
	}
	if p.MaxConcurrency < 0 {
		errs = append(errs, errors.New("max_concurrency cannot be negative"))
	}
	for _, f := range p.Output {
		if f.Field == "" || f.Column == "" {
			errs = append(errs, errors.New("output entries need a field and a column"))
		}
	}
	return errors.Join(errs...)
}

// Options returns BulkCreate options driven by the plan.
func (p *Plan) Options() Options {
	opts := Options{
		ColumnToParam:   p.Columns,
		ProcessRow:      p.ProcessRow,
		UpdateRow:       p.UpdateRow,
		DefaultTimezone: p.Timezone,
		MaxConcurrency:  p.MaxConcurrency,
	}
	if p.Required != nil {
		opts.Required = []string(p.Required)
	}
	return opts
}

// ProcessRow skips rows with empty SkipIfEmpty columns and derives the
// start time and duration fields. A start time that cannot be parsed is
// left unset so required parameter validation reports the row.
func (p *Plan) ProcessRow(row *table.Row) bool {
	for _, col := range p.SkipIfEmpty {
		if strings.TrimSpace(row.String(col)) == "" {
			return false
		}
	}

	if r := p.StartTime; r != nil {
		if t, ok := r.parse(row); ok {
			row.Set(orDefault(r.Column, "start_time"), t)
		}
	}

	if r := p.Duration; r != nil {
		if minutes, ok := r.minutes(row); ok {
			row.Set(orDefault(r.Column, "duration"), minutes)
		}
	}
	return true
}

// UpdateRow copies the configured response fields into the row.
func (p *Plan) UpdateRow(row *table.Row, meeting *zoom.Meeting) {
	for _, f := range p.Output {
		if v, ok := meeting.Field(f.Field); ok {
			row.Set(f.Column, table.FormatValue(v))
		}
	}
}

func (r *StartTimeRule) parse(row *table.Row) (time.Time, bool) {
	date := strings.TrimSpace(row.String(r.DateColumn))
	if date == "" {
		return time.Time{}, false
	}
	// spreadsheet dates often carry a midnight time part
	if len(date) > 10 {
		date = date[:10]
	}

	layout := r.Layout
	value := date
	if r.TimeColumn != "" {
		clock := strings.TrimSpace(row.String(r.TimeColumn))
		if clock == "" {
			return time.Time{}, false
		}
		value = date + " " + clock
		if layout == "" {
			layout = DefaultStartTimeLayout
		}
	} else if layout == "" {
		layout = time.DateOnly
	}

	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (r *DurationRule) minutes(row *table.Row) (int, bool) {
	hours, okH := number(row.String(r.HoursColumn))
	mins, okM := number(row.String(r.MinutesColumn))
	if !okH && !okM {
		return 0, false
	}
	return int(hours*60 + mins), true
}

func number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
