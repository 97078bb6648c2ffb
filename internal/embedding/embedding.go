// Package embedding stores low-dimensional compound embeddings (one row per
// compound) as snappy-compressed gonum dense matrices.
package embedding

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"gonum.org/v1/gonum/mat"

	poolerrors "github.com/molpool/molpool/internal/errors"
)

// Extension is the file suffix of an embedding artifact.
const Extension = ".mat.sz"

// DefaultMethods are the embedding methods looked up when none are configured.
var DefaultMethods = []string{"pca", "umap"}

// Artifact is one loaded embedding.
type Artifact struct {
	Method string
	Values *mat.Dense
}

// Path returns the artifact location for method under dir.
func Path(dir, method string) string {
	return filepath.Join(dir, method+Extension)
}

// Save writes m to path.
// Format: snappy(gonum mat.Dense binary encoding)
func Save(path string, m mat.Matrix) error {
	d := mat.DenseCopyOf(m)
	raw, err := d.MarshalBinary()
	if err != nil {
		return fmt.Errorf("embedding: failed to marshal matrix: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("embedding: failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, snappy.Encode(nil, raw), 0644); err != nil {
		return fmt.Errorf("embedding: failed to write %s: %w", path, err)
	}
	return nil
}

// Load reads the matrix stored at path.
func Load(path string) (*mat.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, poolerrors.MissingArtifact(path, err)
		}
		return nil, fmt.Errorf("embedding: failed to read %s: %w", path, err)
	}
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("embedding: snappy decompress failed: %w", err)
	}
	var d mat.Dense
	if err := d.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("embedding: failed to unmarshal %s: %w", path, err)
	}
	return &d, nil
}

// LoadAll loads the artifacts of the given methods from dir, in method
// order. Methods without an artifact are skipped.
func LoadAll(dir string, methods []string) ([]Artifact, error) {
	var out []Artifact
	for _, method := range methods {
		path := Path(dir, method)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		values, err := Load(path)
		if err != nil {
			return nil, err
		}
		out = append(out, Artifact{Method: method, Values: values})
	}
	return out, nil
}
