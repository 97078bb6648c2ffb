// Package table provides the comma-delimited tables exchanged between
// pipeline stages: a header row followed by one record per compound.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

var (
	// ErrColumnNotFound is returned when a requested column is absent.
	ErrColumnNotFound = errors.New("table: column not found")
	// ErrRaggedRow is returned when a record has a different width than the header.
	ErrRaggedRow = errors.New("table: record width does not match header")
)

// Table is an in-memory CSV table. Row order is significant and preserved.
type Table struct {
	header []string
	rows   [][]string
	index  map[string]int
}

// New creates an empty table with the given header.
func New(header []string) (*Table, error) {
	t := &Table{
		header: append([]string(nil), header...),
		index:  make(map[string]int, len(header)),
	}
	for i, name := range header {
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", name)
		}
		t.index[name] = i
	}
	return t, nil
}

// Read loads a table from a CSV file. A missing file yields an error
// satisfying errors.Is(err, os.ErrNotExist).
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses CSV content from r.
func Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("table: missing header row")
		}
		return nil, fmt.Errorf("table: read header: %w", err)
	}
	t, err := New(header)
	if err != nil {
		return nil, err
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("table: read records: %w", err)
	}
	t.rows = records
	return t, nil
}

// Write stores the table as CSV, creating parent directories.
func (t *Table) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("table: create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("table: create %s: %w", path, err)
	}
	if err := t.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes the table as CSV to w.
func (t *Table) Encode(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return fmt.Errorf("table: write header: %w", err)
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return fmt.Errorf("table: write records: %w", err)
	}
	return nil
}

// Header returns a copy of the column names.
func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.rows)
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Append adds a record. The record must match the header width.
func (t *Table) Append(record []string) error {
	if len(record) != len(t.header) {
		return fmt.Errorf("%w: got %d fields, want %d", ErrRaggedRow, len(record), len(t.header))
	}
	t.rows = append(t.rows, append([]string(nil), record...))
	return nil
}

// Strings returns the raw values of a column.
func (t *Table) Strings(name string) ([]string, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		if j >= len(row) {
			return nil, fmt.Errorf("%w: row %d", ErrRaggedRow, i)
		}
		out[i] = row[j]
	}
	return out, nil
}

// Floats parses a column as float64. Empty cells parse as NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	raw, err := t.Strings(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, s := range raw {
		if s == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("table: column %s row %d: %w", name, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Ints parses a column as integers. Values written as floats with no
// fractional part (e.g. "1.0") are accepted.
func (t *Table) Ints(name string) ([]int, error) {
	vals, err := t.Floats(name)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || v != math.Trunc(v) {
			return nil, fmt.Errorf("table: column %s row %d: %v is not an integer", name, i, v)
		}
		out[i] = int(v)
	}
	return out, nil
}

// Subset returns a new table holding the records at the given positions, in
// the order given.
func (t *Table) Subset(positions []int) (*Table, error) {
	out, _ := New(t.header)
	out.rows = make([][]string, 0, len(positions))
	for _, p := range positions {
		if p < 0 || p >= len(t.rows) {
			return nil, fmt.Errorf("table: position %d out of range [0,%d)", p, len(t.rows))
		}
		out.rows = append(out.rows, t.rows[p])
	}
	return out, nil
}

// Project returns a new table holding only the named columns, in the order
// given.
func (t *Table) Project(names []string) (*Table, error) {
	idx := make([]int, len(names))
	for k, name := range names {
		j, ok := t.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
		idx[k] = j
	}
	out, err := New(names)
	if err != nil {
		return nil, err
	}
	out.rows = make([][]string, len(t.rows))
	for i, row := range t.rows {
		rec := make([]string, len(idx))
		for k, j := range idx {
			rec[k] = row[j]
		}
		out.rows[i] = rec
	}
	return out, nil
}

// FormatFloat renders a value with the shortest exact representation.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
