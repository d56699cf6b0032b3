package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Table is a raw parsed spreadsheet: one header row plus data rows. Rows may
// be ragged; short rows read as empty cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Cell returns the trimmed cell at (row, col), or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	if col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// SampleRows returns up to n leading data rows, for schema resolution hints.
func (t *Table) SampleRows(n int) [][]string {
	if len(t.Rows) < n {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// ReadTable parses a CSV or XLSX file into a Table. The format is chosen by
// file extension. rowLimit bounds the number of data rows read; zero means
// unbounded.
func ReadTable(path, encoding, sheet string, rowLimit int) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path, encoding, rowLimit)
	case ".xlsx":
		return readXLSX(path, sheet, rowLimit)
	default:
		return nil, fmt.Errorf("unsupported trajectory file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

func readCSV(path, encoding string, rowLimit int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
	case "gbk":
		reader = transform.NewReader(f, simplifiedchinese.GBK.NewDecoder())
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1 // tolerate ragged rows
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{Headers: header}
	for rowLimit <= 0 || len(t.Rows) < rowLimit {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// a single bad row is a local failure, not a pipeline abort
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func readXLSX(path, sheet string, rowLimit int) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx file has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	data := rows[1:]
	if rowLimit > 0 && len(data) > rowLimit {
		data = data[:rowLimit]
	}
	return &Table{Headers: header, Rows: data}, nil
}
