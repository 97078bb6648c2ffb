// Package features assembles the pooled feature matrix: embedding
// dimensions followed by the prediction columns of every finished estimator.
package features

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/molpool/molpool/internal/table"
)

// Source tells where a column came from.
type Source string

const (
	SourceEmbedding Source = "embedding"
	SourceEstimator Source = "estimator"
)

// Column describes one feature column and its provenance.
type Column struct {
	// Name is the globally unique column name
	Name   string
	Source Source

	// Method is the embedding method (embedding columns only)
	Method string

	// Estimator is the "-"-joined estimator path (estimator columns only)
	Estimator string

	// Original is the column name inside the estimator's own table
	Original string
}

// Matrix is a column-major feature matrix; every column has Rows values.
type Matrix struct {
	Rows    int
	Columns []Column
	values  [][]float64
}

func newMatrix(rows int) *Matrix {
	return &Matrix{Rows: rows}
}

func (m *Matrix) add(col Column, values []float64) error {
	if len(values) != m.Rows {
		return fmt.Errorf("features: column %s has %d rows, want %d", col.Name, len(values), m.Rows)
	}
	m.Columns = append(m.Columns, col)
	m.values = append(m.values, values)
	return nil
}

// Names returns the column names in order.
func (m *Matrix) Names() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// Col returns the values of column j.
func (m *Matrix) Col(j int) []float64 {
	return m.values[j]
}

// Select returns the columns for which keep returns true, in order.
// Values are shared with m.
func (m *Matrix) Select(keep func(Column) bool) *Matrix {
	out := newMatrix(m.Rows)
	for j, c := range m.Columns {
		if keep(c) {
			out.Columns = append(out.Columns, c)
			out.values = append(out.values, m.values[j])
		}
	}
	return out
}

// Estimators returns the estimator columns, dropping embeddings. Binarized
// decision channels are kept; task lookup tells them apart from scores.
func (m *Matrix) Estimators() *Matrix {
	return m.Select(func(c Column) bool {
		return c.Source == SourceEstimator
	})
}

// Dense materializes the given rows (all rows when nil) as a dense matrix.
// It returns a nil mat.Matrix when the matrix has no columns or no rows.
func (m *Matrix) Dense(rows []int) mat.Matrix {
	if rows == nil {
		rows = make([]int, m.Rows)
		for i := range rows {
			rows[i] = i
		}
	}
	if len(m.Columns) == 0 || len(rows) == 0 {
		return nil
	}
	d := mat.NewDense(len(rows), len(m.Columns), nil)
	for j := range m.Columns {
		for i, r := range rows {
			d.Set(i, j, m.values[j][r])
		}
	}
	return d
}

// Table renders the matrix as a CSV table.
func (m *Matrix) Table() (*table.Table, error) {
	tbl, err := table.New(m.Names())
	if err != nil {
		return nil, err
	}
	rec := make([]string, len(m.Columns))
	for i := 0; i < m.Rows; i++ {
		for j := range m.Columns {
			rec[j] = table.FormatFloat(m.values[j][i])
		}
		if err := tbl.Append(rec); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}
