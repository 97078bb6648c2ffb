package pool

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaolacci/murmur3"

	poolerrors "github.com/molpool/molpool/internal/errors"
	"github.com/molpool/molpool/pkg/types"
)

// Locations of pool artifacts, relative to a run directory.
const (
	PoolDir         = "pool"
	BaggerDir       = "bagger"
	MappingFilename = "columns.json"
	GroupsFilename  = "groups.json"
	ResultsFilename = "results_unmapped.csv"
)

// BaggerPath returns the directory holding the persisted mapping of runDir.
func BaggerPath(runDir string) string {
	return filepath.Join(runDir, PoolDir, BaggerDir)
}

// ResultsPath returns the consensus prediction table of runDir.
func ResultsPath(runDir string) string {
	return filepath.Join(runDir, PoolDir, ResultsFilename)
}

// GroupState records what a kind looked like at fit time.
type GroupState struct {
	Active bool `json:"active"`

	// Columns is the number of estimator columns pooled for the kind
	Columns int `json:"columns"`

	// Fingerprint identifies the ordered estimator column names
	Fingerprint string `json:"fingerprint"`
}

// Groups maps each kind to its state.
type Groups map[types.TaskKind]GroupState

// Fingerprint hashes an ordered list of column names.
func Fingerprint(columns []string) string {
	h := murmur3.New128()
	var n [4]byte
	for _, c := range columns {
		binary.LittleEndian.PutUint32(n[:], uint32(len(c)))
		h.Write(n[:])
		h.Write([]byte(c))
	}
	h1, h2 := h.Sum128()
	var out [16]byte
	binary.BigEndian.PutUint64(out[:8], h1)
	binary.BigEndian.PutUint64(out[8:], h2)
	return hex.EncodeToString(out[:])
}

// SaveBagger writes the mapping and group state into dir.
func SaveBagger(dir string, mapping types.ColumnMapping, groups Groups) error {
	if err := mapping.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("pool: create %s: %w", dir, err)
	}
	if err := writeJSON(filepath.Join(dir, MappingFilename), mapping.Normalize()); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, GroupsFilename), groups)
}

// LoadBagger reads the mapping and group state from dir.
func LoadBagger(dir string) (types.ColumnMapping, Groups, error) {
	var mapping types.ColumnMapping
	if err := readJSON(filepath.Join(dir, MappingFilename), &mapping); err != nil {
		return types.ColumnMapping{}, nil, err
	}
	if err := mapping.Validate(); err != nil {
		return types.ColumnMapping{}, nil, err
	}
	var groups Groups
	if err := readJSON(filepath.Join(dir, GroupsFilename), &groups); err != nil {
		return types.ColumnMapping{}, nil, err
	}
	return mapping.Normalize(), groups, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("pool: encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("pool: write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return poolerrors.MissingArtifact(path, err)
		}
		return fmt.Errorf("pool: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("pool: parse %s: %w", path, err)
	}
	return nil
}
