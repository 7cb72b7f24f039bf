package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is how time.Time values are rendered as text.
const TimeLayout = "2006-01-02 15:04:05"

// Row is one source record plus any fields added while processing it.
// A Row is not safe for concurrent mutation.
type Row struct {
	// Index is the 0-based position of the row in its source.
	Index int

	columns []string
	values  map[string]any
}

// NewRow creates an empty row at position index.
func NewRow(index int) *Row {
	return &Row{Index: index, values: make(map[string]any)}
}

// RowFrom builds a row from column/value pairs in order. It panics on an
// odd number of arguments.
func RowFrom(index int, pairs ...any) *Row {
	if len(pairs)%2 != 0 {
		panic("table.RowFrom: odd number of arguments")
	}
	r := NewRow(index)
	for i := 0; i < len(pairs); i += 2 {
		r.Set(fmt.Sprint(pairs[i]), pairs[i+1])
	}
	return r
}

// Set adds or overwrites a field. New columns are appended.
func (r *Row) Set(column string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Get returns a field's value.
func (r *Row) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Has reports whether the row has the column.
func (r *Row) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// String returns a field rendered as text, or "" when absent.
func (r *Row) String(column string) string {
	return FormatValue(r.values[column])
}

// Columns returns the row's columns in order.
func (r *Row) Columns() []string {
	return slices.Clone(r.columns)
}

// MarshalJSON renders the row as an object with fields in column order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(jsonValue(r.values[col]))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return v
}

// FormatValue renders a field value as text.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(TimeLayout)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
