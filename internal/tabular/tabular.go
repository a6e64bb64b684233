// Package tabular reads header-addressed CSV tables.
//
// Both pipeline inputs are spreadsheet exports whose column order is not
// guaranteed, so rows are accessed by header name. A missing required
// column is a structural failure reported as *SchemaError.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// SchemaError reports required columns absent from a table header.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required column(s): %s", e.Table, strings.Join(e.Missing, ", "))
}

// Table is a fully loaded CSV table.
type Table struct {
	Name   string
	header map[string]int
	rows   [][]string
}

// Row is a single record bound to its table header.
type Row struct {
	// Line is the 1-based data row number (header excluded).
	Line   int
	header map[string]int
	fields []string
}

// ReadFile loads the CSV file at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(path, f)
}

// Read loads a CSV table from r. name is used in error messages.
func Read(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Table: name, Missing: []string{"(header row)"}}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}

	t := &Table{Name: name, header: make(map[string]int, len(head))}
	for i, h := range head {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if _, dup := t.header[h]; !dup {
			t.header[h] = i
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// Has reports whether the header contains column.
func (t *Table) Has(column string) bool {
	_, ok := t.header[column]
	return ok
}

// Require returns a *SchemaError naming every absent column, or nil.
func (t *Table) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Table: t.Name, Missing: missing}
	}
	return nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns every data row in input order.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i, rec := range t.rows {
		out[i] = Row{Line: i + 1, header: t.header, fields: rec}
	}
	return out
}

// Get returns the trimmed value of column, or "" when the column or the
// cell is absent (short rows are tolerated).
func (r Row) Get(column string) string {
	i, ok := r.header[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}
