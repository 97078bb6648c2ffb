package types

import "fmt"

// CompoundIDColumn is the identifier column of every produced table.
const CompoundIDColumn = "compound_id"

// ColumnMapping records which tasks were pooled for each kind and in which
// order. It is written once at fit time and read unchanged at predict time.
type ColumnMapping struct {
	Regression     []string `json:"regression"`
	Classification []string `json:"classification"`
}

// Tasks returns the mapped task names of one kind.
func (m ColumnMapping) Tasks(kind TaskKind) []string {
	switch kind {
	case Regression:
		return m.Regression
	case Classification:
		return m.Classification
	default:
		return nil
	}
}

// Active reports whether any task of the kind is mapped.
func (m ColumnMapping) Active(kind TaskKind) bool {
	return len(m.Tasks(kind)) > 0
}

// OutputColumns returns the prediction table header: compound_id, every
// regression task, then a (score, decision) pair per classification task.
func (m ColumnMapping) OutputColumns() []string {
	cols := make([]string, 0, 1+len(m.Regression)+2*len(m.Classification))
	cols = append(cols, CompoundIDColumn)
	cols = append(cols, m.Regression...)
	for _, c := range m.Classification {
		cols = append(cols, c, c+BinarySuffix)
	}
	return cols
}

// Validate checks that no task appears twice.
func (m ColumnMapping) Validate() error {
	seen := make(map[string]bool, len(m.Regression)+len(m.Classification))
	for _, kind := range Kinds {
		for _, name := range m.Tasks(kind) {
			if name == "" {
				return fmt.Errorf("%w: empty %s task name", ErrInvalidMapping, kind)
			}
			if seen[name] {
				return fmt.Errorf("%w: task %s mapped twice", ErrInvalidMapping, name)
			}
			seen[name] = true
		}
	}
	return nil
}

// Normalize replaces nil slices with empty ones so the JSON form always
// carries both keys as arrays.
func (m ColumnMapping) Normalize() ColumnMapping {
	if m.Regression == nil {
		m.Regression = []string{}
	}
	if m.Classification == nil {
		m.Classification = []string{}
	}
	return m
}
