package bulk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/zoombulk/internal/table"
	"github.com/teemow/zoombulk/internal/zoom"
)

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Host Email":   "host_email",
		"start-time":   "start_time",
		" Topic ":      "topic",
		"Schedule For": "schedule_for",
		"already_ok":   "already_ok",
	}
	for in, want := range tests {
		assert.Equal(t, want, SnakeCase(in), in)
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	row := table.RowFrom(4,
		"Meeting Topic", "Kickoff",
		"Host Email", "jane@example.com",
		"Start Time", "2024-05-01T09:00:00",
		"Notes", "bring snacks",
		"Password", "",
	)

	n := Normalizer{ColumnToParam: map[string]string{"Meeting Topic": "topic"}}
	params, included, err := n.Normalize(row)
	require.NoError(t, err)
	require.True(t, included)

	assert.Equal(t, zoom.Params{
		"topic":      "Kickoff",
		"host_email": "jane@example.com",
		"start_time": "2024-05-01T09:00:00",
		"timezone":   "UTC",
	}, params)

	assert.True(t, row.Has("Notes"), "unmapped columns stay in the row")
	assert.Len(t, row.Columns(), 5)
}

func TestNormalizer_ProcessRowRunsFirst(t *testing.T) {
	row := table.RowFrom(0, "Date", "2024-05-01")

	n := Normalizer{
		ProcessRow: func(r *table.Row) bool {
			r.Set("start_time", r.String("Date")+"T10:00:00")
			return true
		},
		DefaultTimezone: "Europe/Berlin",
	}
	params, included, err := n.Normalize(row)
	require.NoError(t, err)
	require.True(t, included)

	assert.Equal(t, "2024-05-01T10:00:00", params["start_time"])
	assert.Equal(t, "Europe/Berlin", params["timezone"])
	assert.Equal(t, "2024-05-01T10:00:00", row.String("start_time"), "derived fields are kept on the row")
}

func TestNormalizer_Skip(t *testing.T) {
	n := Normalizer{ProcessRow: func(*table.Row) bool { return false }}
	params, included, err := n.Normalize(table.RowFrom(0, "start_time", "x"))
	assert.NoError(t, err)
	assert.False(t, included)
	assert.Nil(t, params)
}

func TestNormalizer_RowTimezoneWins(t *testing.T) {
	n := Normalizer{DefaultTimezone: "Europe/Berlin"}
	params, _, err := n.Normalize(table.RowFrom(0, "start_time", "x", "Timezone", "Asia/Tokyo"))
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", params["timezone"])
}

func TestNormalizer_ExplicitMappingWins(t *testing.T) {
	row := table.RowFrom(0,
		"Topic", "from name match",
		"Title", "from mapping",
		"start_time", "x",
	)
	n := Normalizer{ColumnToParam: map[string]string{"Title": "topic"}}
	params, _, err := n.Normalize(row)
	require.NoError(t, err)
	assert.Equal(t, "from mapping", params["topic"])

	// same result when the mapped column comes first
	row = table.RowFrom(0,
		"Title", "from mapping",
		"Topic", "from name match",
		"start_time", "x",
	)
	params, _, err = n.Normalize(row)
	require.NoError(t, err)
	assert.Equal(t, "from mapping", params["topic"])
}

func TestNormalizer_MissingRequired(t *testing.T) {
	row := table.RowFrom(7, "Topic", "No time", "Start Time", "  ")

	params, included, err := (&Normalizer{}).Normalize(row)
	require.Error(t, err)
	assert.True(t, included)
	assert.Equal(t, "No time", params["topic"])

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, 7, vErr.Row)
	assert.Equal(t, []string{"start_time"}, vErr.Missing)
	assert.Equal(t, KindValidation, Classify(err))
}

func TestNormalizer_CustomRequired(t *testing.T) {
	row := table.RowFrom(0, "Topic", "Instant")

	_, _, err := (&Normalizer{Required: []string{}}).Normalize(row)
	assert.NoError(t, err, "an empty required list disables validation")

	_, _, err = (&Normalizer{Required: []string{"topic", "host_email"}}).Normalize(row)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []string{"host_email"}, vErr.Missing)
}
