// Package manifest lists the single-task estimator runs whose prediction
// tables are ready to be pooled.
//
// Estimator runners are external processes. They record completion either by
// rewriting done.json (WriteJSON) or by calling SQLiteCatalog.Register on
// manifest.db; molpool itself only reads the manifest through Reader.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	poolerrors "github.com/molpool/molpool/internal/errors"
)

// Manifest backends.
const (
	TypeJSON   = "json"
	TypeSQLite = "sqlite"
)

// ResultsFilename is the per-estimator prediction table.
const ResultsFilename = "results_unmapped.csv"

// EstimatorRun identifies one finished estimator by its path segments
// relative to the estimators directory.
type EstimatorRun struct {
	Segments []string
}

// Prefix returns the column prefix for this run: the segments joined by "-".
func (r EstimatorRun) Prefix() string {
	return strings.Join(r.Segments, "-")
}

// ResultsPath returns the location of the run's prediction table under root.
func (r EstimatorRun) ResultsPath(root string) string {
	parts := append([]string{root}, r.Segments...)
	parts = append(parts, ResultsFilename)
	return filepath.Join(parts...)
}

// Reader returns completed estimator runs in manifest order.
type Reader interface {
	// Completed returns every finished run, in the order they were recorded.
	Completed(ctx context.Context) ([]EstimatorRun, error)

	// Close releases any underlying resources.
	Close() error
}

// Open returns the reader for the configured backend.
func Open(kind, path string) (Reader, error) {
	switch kind {
	case "", TypeJSON:
		return NewJSONManifest(path), nil
	case TypeSQLite:
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, poolerrors.MissingArtifact(path, err)
			}
			return nil, fmt.Errorf("manifest: stat catalog: %w", err)
		}
		return NewCatalog(path)
	default:
		return nil, fmt.Errorf("manifest: unsupported type %q", kind)
	}
}

// JSONManifest reads a JSON array of path-segment arrays, e.g.
// [["chemprop","reg_y"],["mollib","clf_z"]].
type JSONManifest struct {
	path string
}

// NewJSONManifest creates a reader for the file at path.
func NewJSONManifest(path string) *JSONManifest {
	return &JSONManifest{path: path}
}

// Completed implements Reader.
func (m *JSONManifest) Completed(ctx context.Context) ([]EstimatorRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, poolerrors.MissingArtifact(m.path, err)
		}
		return nil, fmt.Errorf("manifest: read %s: %w", m.path, err)
	}
	var raw [][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", m.path, err)
	}
	runs := make([]EstimatorRun, 0, len(raw))
	for i, segs := range raw {
		if err := validateSegments(segs); err != nil {
			return nil, fmt.Errorf("manifest: entry %d: %w", i, err)
		}
		runs = append(runs, EstimatorRun{Segments: segs})
	}
	return runs, nil
}

// Close implements Reader.
func (m *JSONManifest) Close() error {
	return nil
}

// WriteJSON stores runs as a JSON manifest.
func WriteJSON(path string, runs []EstimatorRun) error {
	raw := make([][]string, len(runs))
	for i, r := range runs {
		if err := validateSegments(r.Segments); err != nil {
			return err
		}
		raw[i] = r.Segments
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("manifest: create directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func validateSegments(segs []string) error {
	if len(segs) == 0 {
		return fmt.Errorf("empty estimator path")
	}
	for _, s := range segs {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return fmt.Errorf("invalid path segment %q", s)
		}
	}
	return nil
}
