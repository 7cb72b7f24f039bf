package table

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXReader reads rows from one sheet of an Excel workbook.
type XLSXReader struct {
	Path string
	// Sheet defaults to the first sheet of the workbook.
	Sheet string
}

// Read implements Reader. Cells are returned as displayed by their number
// format.
func (r *XLSXReader) Read(ctx context.Context) ([]*Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", r.Path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := r.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s has no sheets", r.Path)
		}
		sheet = sheets[0]
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, r.Path, err)
	}
	return fromRecords(records)
}
