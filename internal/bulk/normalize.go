package bulk

import (
	"strings"

	"github.com/teemow/zoombulk/internal/table"
	"github.com/teemow/zoombulk/internal/zoom"
)

// ProcessRowFunc may add or overwrite fields of a row before it is
// normalized. Returning false skips the row.
type ProcessRowFunc func(row *table.Row) bool

// UpdateRowFunc integrates a created meeting into its row.
type UpdateRowFunc func(row *table.Row, meeting *zoom.Meeting)

// DefaultRequired lists the parameters a row needs when Options.Required
// is nil.
var DefaultRequired = []string{"start_time"}

// Normalizer turns rows into create meeting parameters.
type Normalizer struct {
	// ColumnToParam maps column headers to parameter names. Columns not in
	// the map fall back to their snake_case form.
	ColumnToParam map[string]string
	ProcessRow    ProcessRowFunc
	// DefaultTimezone is used when a row has no timezone. Defaults to UTC.
	DefaultTimezone string
	// Required parameters; nil means DefaultRequired.
	Required []string
}

// Normalize runs ProcessRow and extracts the row's parameters. A skipped
// row returns included == false. A row missing required parameters
// returns a *ValidationError along with the parameters it did have.
func (n *Normalizer) Normalize(row *table.Row) (params zoom.Params, included bool, err error) {
	if n.ProcessRow != nil && !n.ProcessRow(row) {
		return nil, false, nil
	}

	params = make(zoom.Params)
	explicit := make(map[string]bool)
	for _, col := range row.Columns() {
		param, mapped := n.ColumnToParam[col]
		if !mapped || param == "" {
			param = SnakeCase(col)
		}
		if !zoom.IsCreateMeetingParam(param) {
			continue
		}
		// an explicitly mapped column wins over a name that merely matches
		if explicit[param] && !mapped {
			continue
		}

		v, _ := row.Get(col)
		if isBlank(v) {
			continue
		}
		params[param] = v
		if mapped {
			explicit[param] = true
		}
	}

	if params.Empty("timezone") {
		tz := n.DefaultTimezone
		if tz == "" {
			tz = zoom.DefaultTimezone
		}
		params["timezone"] = tz
	}

	required := n.Required
	if required == nil {
		required = DefaultRequired
	}
	var missing []string
	for _, name := range required {
		if params.Empty(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return params, true, &ValidationError{Row: row.Index, Missing: missing}
	}
	return params, true, nil
}

// SnakeCase converts a column header such as "Host Email" to "host_email".
func SnakeCase(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return strings.ToLower(s)
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}
