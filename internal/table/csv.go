package table

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CSVReader reads rows from a CSV file whose first non-blank record is the
// header.
type CSVReader struct {
	Path string
}

// Read implements Reader.
func (r *CSVReader) Read(ctx context.Context) ([]*Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", r.Path, err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.Path, err)
	}
	return rows, nil
}

// ReadCSV parses CSV data into rows.
func ReadCSV(src io.Reader) ([]*Row, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return fromRecords(records)
}

// WriteCSV writes rows with a header made of every column in first-seen
// order. Missing fields are written empty.
func WriteCSV(w io.Writer, rows []*Row) error {
	var header []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, col := range row.columns {
			if !seen[col] {
				seen[col] = true
				header = append(header, col)
			}
		}
	}
	if len(header) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			record[i] = row.String(col)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes rows to path, replacing it atomically.
func WriteCSVFile(path string, rows []*Row) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = WriteCSV(tmp, rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
