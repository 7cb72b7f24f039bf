package table

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheet string, cells [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range cells {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "meetings.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestXLSXReader_FirstSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{
		{"Topic", "Host Email", "Duration Hours"},
		{"Kickoff", "jane@example.com", 1},
		{},
		{"Retro", "john@example.com", 2},
	})

	rows, err := (&XLSXReader{Path: path}).Read(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Kickoff", rows[0].String("Topic"))
	assert.Equal(t, "1", rows[0].String("Duration Hours"))
	assert.Equal(t, 1, rows[1].Index)
	assert.Equal(t, "john@example.com", rows[1].String("Host Email"))
}

func TestXLSXReader_NamedSheet(t *testing.T) {
	path := writeWorkbook(t, "Meetings", [][]any{
		{"Topic"},
		{"Planning"},
	})

	rows, err := (&XLSXReader{Path: path, Sheet: "Meetings"}).Read(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Planning", rows[0].String("Topic"))

	_, err = (&XLSXReader{Path: path, Sheet: "Missing"}).Read(context.Background())
	assert.Error(t, err)
}
