package refdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a header-keyed tabular source: the first row names the columns,
// every following row is a record.
type Table struct {
	Name   string
	Path   string
	header map[string]int
	rows   [][]string
	lines  []int
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the table carries the named column.
func (t *Table) Has(column string) bool {
	_, ok := t.header[column]
	return ok
}

// Get returns the trimmed value of column in data row i, or "" when the
// column is absent or the row is short.
func (t *Table) Get(i int, column string) string {
	idx, ok := t.header[column]
	if !ok || i < 0 || i >= len(t.rows) || idx >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][idx])
}

// Line returns the 1-based source line on which data row i starts. For
// workbooks it is the sheet row number.
func (t *Table) Line(i int) int {
	if i >= 0 && i < len(t.lines) {
		return t.lines[i]
	}
	return i + 2
}

// blank reports whether every field of data row i is empty.
func (t *Table) blank(i int) bool {
	for _, f := range t.rows[i] {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func (t *Table) require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required column(s) %s", strings.Join(missing, ", "))
	}
	return nil
}

// ReadTable reads a table from path. The format follows the extension:
// .csv is comma separated, .tsv and .txt are tab separated and .xlsx is read
// from the first worksheet.
func ReadTable(name, path string) (*Table, error) {
	var (
		records [][]string
		lines   []int
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		records, lines, err = readWorkbook(name, path)
	case ".tsv", ".txt":
		records, lines, err = readDelimited(name, path, '\t')
	default:
		records, lines, err = readDelimited(name, path, ',')
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &LoadFailure{Kind: ParseError, Table: name, Path: path, Row: 1, Err: errors.New("table is empty")}
	}

	t := &Table{Name: name, Path: path, header: make(map[string]int, len(records[0])), rows: records[1:], lines: lines[1:]}
	for i, col := range records[0] {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if col == "" {
			continue
		}
		if _, dup := t.header[col]; !dup {
			t.header[col] = i
		}
	}
	return t, nil
}

func readDelimited(name, path string, comma rune) ([][]string, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &LoadFailure{Kind: FileMissing, Table: name, Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1
	// LOINC text columns carry stray quotes in tab-separated exports.
	r.LazyQuotes = comma == '\t'

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			row := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				row = pe.Line
			}
			return nil, nil, &LoadFailure{Kind: ParseError, Table: name, Path: path, Row: row, Err: err}
		}
		line, _ := r.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return records, lines, nil
}

func readWorkbook(name, path string) ([][]string, []int, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, &LoadFailure{Kind: FileMissing, Table: name, Path: path, Err: err}
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, &LoadFailure{Kind: ParseError, Table: name, Path: path, Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, &LoadFailure{Kind: ParseError, Table: name, Path: path, Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, &LoadFailure{Kind: ParseError, Table: name, Path: path, Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return rows, lines, nil
}
