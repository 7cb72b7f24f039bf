package table

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Reader produces the rows of a tabular source. Each call to Read starts
// from the beginning of the source.
type Reader interface {
	Read(ctx context.Context) ([]*Row, error)
}

// Open returns a Reader for path, chosen by file extension.
func Open(path string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return &CSVReader{Path: path}, nil
	case ".xlsx", ".xlsm":
		return &XLSXReader{Path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported input file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// OutputPath returns the default results file for an input file:
// "<dir>/<stem>.out.csv".
func OutputPath(input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(input), stem+".out.csv")
}

// fromRecords turns a header record and data records into rows. Blank
// records are skipped and do not consume an index.
func fromRecords(records [][]string) ([]*Row, error) {
	headerAt := -1
	for i, rec := range records {
		if !isEmptyRecord(rec) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, nil
	}

	header := cleanHeader(records[headerAt])

	var rows []*Row
	for _, rec := range records[headerAt+1:] {
		if isEmptyRecord(rec) {
			continue
		}
		row := NewRow(len(rows))
		for i, col := range header {
			if col == "" {
				continue
			}
			value := ""
			if i < len(rec) {
				value = strings.TrimSpace(rec[i])
			}
			row.Set(col, value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cleanHeader trims header cells, strips a UTF-8 BOM and makes duplicate
// names unique by suffixing them.
func cleanHeader(rec []string) []string {
	header := make([]string, len(rec))
	seen := make(map[string]int, len(rec))
	for i, h := range rec {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			continue
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		header[i] = h
	}
	return header
}

func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
