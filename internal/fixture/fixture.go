// Package fixture writes run directories for tests.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/molpool/molpool/internal/embedding"
	"github.com/molpool/molpool/internal/manifest"
	"github.com/molpool/molpool/internal/table"
	"github.com/molpool/molpool/pkg/types"
)

// Estimator is one finished estimator with its prediction columns.
type Estimator struct {
	Segments []string
	Columns  []string
	Values   [][]float64 // one slice per column
}

// Run describes the inputs of a run directory.
type Run struct {
	IDs        []string
	Labels     []string    // label column names
	LabelRows  [][]string  // one record per compound, len(Labels) wide
	Validation []int       // nil writes no validation file
	Estimators []Estimator // manifest order

	// Embeddings maps a method to its compounds x dims matrix
	Embeddings map[string]mat.Matrix
}

// IDs returns n compound ids c0..c(n-1).
func IDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%d", i)
	}
	return ids
}

// Write materializes r under dir and returns dir.
func Write(t testing.TB, dir string, r Run) string {
	t.Helper()

	header := append([]string{types.CompoundIDColumn, "smiles"}, r.Labels...)
	data := mustTable(t, header)
	for i, id := range r.IDs {
		rec := []string{id, "C"}
		if r.LabelRows != nil {
			rec = append(rec, r.LabelRows[i]...)
		}
		mustAppend(t, data, rec)
	}
	mustWrite(t, data, filepath.Join(dir, "data", "data.csv"))

	if r.Validation != nil {
		raw, err := json.Marshal(r.Validation)
		if err != nil {
			t.Fatalf("fixture: encode validation: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "data", "validation.json"), raw, 0644); err != nil {
			t.Fatalf("fixture: write validation: %v", err)
		}
	}

	for method, m := range r.Embeddings {
		if err := embedding.Save(embedding.Path(filepath.Join(dir, "descriptors"), method), m); err != nil {
			t.Fatalf("fixture: write embedding: %v", err)
		}
	}

	runs := make([]manifest.EstimatorRun, 0, len(r.Estimators))
	for _, e := range r.Estimators {
		WriteEstimator(t, dir, r.IDs, e)
		runs = append(runs, manifest.EstimatorRun{Segments: e.Segments})
	}
	if err := manifest.WriteJSON(filepath.Join(dir, "estimators", "done.json"), runs); err != nil {
		t.Fatalf("fixture: write manifest: %v", err)
	}
	return dir
}

// WriteEstimator writes one estimator's results table.
func WriteEstimator(t testing.TB, dir string, ids []string, e Estimator) {
	t.Helper()

	tbl := mustTable(t, append([]string{types.CompoundIDColumn, "smiles"}, e.Columns...))
	for i, id := range ids {
		rec := []string{id, "C"}
		for j := range e.Columns {
			rec = append(rec, table.FormatFloat(e.Values[j][i]))
		}
		mustAppend(t, tbl, rec)
	}
	run := manifest.EstimatorRun{Segments: e.Segments}
	mustWrite(t, tbl, run.ResultsPath(filepath.Join(dir, "estimators")))
}

// Column formats float labels as table cells.
func Column(values ...float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = table.FormatFloat(v)
	}
	return out
}

// Rows transposes label columns into records.
func Rows(cols ...[]string) [][]string {
	if len(cols) == 0 {
		return nil
	}
	rows := make([][]string, len(cols[0]))
	for i := range rows {
		for _, c := range cols {
			rows[i] = append(rows[i], c[i])
		}
	}
	return rows
}

func mustTable(t testing.TB, header []string) *table.Table {
	t.Helper()
	tbl, err := table.New(header)
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return tbl
}

func mustAppend(t testing.TB, tbl *table.Table, rec []string) {
	t.Helper()
	if err := tbl.Append(rec); err != nil {
		t.Fatalf("fixture: %v", err)
	}
}

func mustWrite(t testing.TB, tbl *table.Table, path string) {
	t.Helper()
	if err := tbl.Write(path); err != nil {
		t.Fatalf("fixture: %v", err)
	}
}
