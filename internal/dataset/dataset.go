// Package dataset loads the compound table, its task descriptors and the
// validation subset.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	poolerrors "github.com/molpool/molpool/internal/errors"
	"github.com/molpool/molpool/internal/table"
	"github.com/molpool/molpool/pkg/types"
)

// Dataset is the compound table with its task descriptors.
type Dataset struct {
	Table    *table.Table
	Tasks    *types.TaskSet
	IDColumn string
	ids      []string
}

// Options controls how the dataset is interpreted.
type Options struct {
	// IDColumn is the compound identifier column (default compound_id)
	IDColumn string
	// TaskSchemaPath optionally points at an explicit task schema (YAML or JSON)
	TaskSchemaPath string
}

// Load reads the dataset table at path and builds its task descriptors once.
func Load(path string, opts Options) (*Dataset, error) {
	tbl, err := table.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, poolerrors.MissingArtifact(path, err)
		}
		return nil, fmt.Errorf("dataset: %w", err)
	}

	idCol := opts.IDColumn
	var tasks *types.TaskSet
	if opts.TaskSchemaPath != "" {
		schema, err := LoadTaskSchema(opts.TaskSchemaPath)
		if err != nil {
			return nil, err
		}
		if idCol == "" {
			idCol = schema.IDColumn
		}
		tasks, err = schema.TaskSet()
		if err != nil {
			return nil, poolerrors.Wrap(poolerrors.ErrCategoryValidation, poolerrors.CodeInvalidTask,
				"invalid task schema", err)
		}
	} else {
		tasks, err = types.TasksFromHeader(tbl.Header())
		if err != nil {
			return nil, poolerrors.Wrap(poolerrors.ErrCategoryValidation, poolerrors.CodeInvalidTask,
				"invalid task columns", err)
		}
	}
	if idCol == "" {
		idCol = types.CompoundIDColumn
	}

	ids, err := tbl.Strings(idCol)
	if err != nil {
		return nil, poolerrors.Wrap(poolerrors.ErrCategoryValidation, poolerrors.CodeInvalidTable,
			"dataset has no identifier column", err)
	}
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, poolerrors.NewValidationError(poolerrors.CodeInvalidTable,
				fmt.Sprintf("empty compound id at row %d", i))
		}
		if seen[id] {
			return nil, poolerrors.NewValidationError(poolerrors.CodeInvalidTable,
				fmt.Sprintf("duplicate compound id %s", id))
		}
		seen[id] = true
	}

	return &Dataset{Table: tbl, Tasks: tasks, IDColumn: idCol, ids: ids}, nil
}

// LoadTaskSchema reads an explicit task declaration.
func LoadTaskSchema(path string) (*types.TaskSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, poolerrors.MissingArtifact(path, err)
		}
		return nil, fmt.Errorf("dataset: read task schema: %w", err)
	}

	var schema types.TaskSchema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &schema)
	case ".json":
		err = json.Unmarshal(data, &schema)
	default:
		return nil, fmt.Errorf("dataset: unsupported task schema format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: parse task schema: %w", err)
	}
	return &schema, nil
}

// Len returns the compound count.
func (d *Dataset) Len() int {
	return len(d.ids)
}

// CompoundIDs returns the identifiers in table order.
func (d *Dataset) CompoundIDs() []string {
	return append([]string(nil), d.ids...)
}

// RowsByID resolves compound identifiers to their table rows, in the order
// given. Unknown or repeated identifiers are a schema mismatch.
func (d *Dataset) RowsByID(ids []string) ([]int, error) {
	index := make(map[string]int, len(d.ids))
	for i, id := range d.ids {
		index[id] = i
	}
	rows := make([]int, len(ids))
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		r, ok := index[id]
		if !ok {
			return nil, poolerrors.SchemaMismatch(fmt.Sprintf("compound %s is not in the dataset", id))
		}
		if seen[id] {
			return nil, poolerrors.SchemaMismatch(fmt.Sprintf("compound %s appears twice", id))
		}
		seen[id] = true
		rows[i] = r
	}
	return rows, nil
}

// HasLabels reports whether every named task has a label column.
func (d *Dataset) HasLabels(names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, n := range names {
		if !d.Table.Has(n) {
			return false
		}
	}
	return true
}

// Labels builds the observed-label table for the named tasks restricted to
// rows (all rows when rows is nil). Binarized channels are never included.
func (d *Dataset) Labels(names []string, rows []int) (*table.Table, error) {
	cols := append([]string{d.IDColumn}, names...)
	for _, n := range names {
		if _, ok := d.Tasks.Get(n); !ok {
			return nil, poolerrors.NewValidationError(poolerrors.CodeInvalidTask,
				fmt.Sprintf("%s is not a declared task", n))
		}
	}
	proj, err := d.Table.Project(cols)
	if err != nil {
		return nil, poolerrors.Wrap(poolerrors.ErrCategorySchema, poolerrors.CodeSchemaMismatch,
			"dataset lacks a label column", err)
	}
	if rows == nil {
		return proj, nil
	}
	return proj.Subset(rows)
}

// LoadValidationIndices reads the ordered validation subset, a JSON array of
// row positions into the dataset table, and checks them against n.
func LoadValidationIndices(path string, n int) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, poolerrors.MissingArtifact(path, err)
		}
		return nil, fmt.Errorf("dataset: read validation indices: %w", err)
	}
	var idx []int
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("dataset: parse validation indices: %w", err)
	}
	if len(idx) == 0 {
		return nil, poolerrors.NewValidationError(poolerrors.CodeInvalidIndex,
			"validation subset is empty")
	}
	if err := CheckIndices(idx, n); err != nil {
		return nil, err
	}
	return idx, nil
}

// CheckIndices verifies every index addresses one of n rows.
func CheckIndices(idx []int, n int) error {
	for _, i := range idx {
		if i < 0 || i >= n {
			return poolerrors.NewValidationError(poolerrors.CodeInvalidIndex,
				fmt.Sprintf("validation index %d out of range [0,%d)", i, n))
		}
	}
	return nil
}
