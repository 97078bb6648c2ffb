package pool

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/molpool/molpool/internal/consensus"
	poolerrors "github.com/molpool/molpool/internal/errors"
	"github.com/molpool/molpool/internal/features"
	"github.com/molpool/molpool/internal/table"
	"github.com/molpool/molpool/pkg/types"
)

// taskGroup holds the estimator columns of every task of one kind.
type taskGroup struct {
	kind   types.TaskKind
	tasks  []types.Task
	blocks map[string]*features.Matrix
	names  []string // estimator column names of the kind, in matrix order
}

func (g *taskGroup) empty() bool {
	return len(g.names) == 0
}

// fingerprint identifies the estimator column layout of the group.
func (g *taskGroup) fingerprint() string {
	return Fingerprint(g.names)
}

// partition assigns estimator score columns to tasks by exact name lookup
// of their original column name. Columns that name no task are ignored.
func partition(m *features.Matrix, tasks *types.TaskSet, logger *zap.Logger) map[types.TaskKind]*taskGroup {
	groups := make(map[types.TaskKind]*taskGroup, len(types.Kinds))
	for _, kind := range types.Kinds {
		groups[kind] = &taskGroup{
			kind:   kind,
			tasks:  tasks.ByKind(kind),
			blocks: make(map[string]*features.Matrix),
		}
	}

	owner := make(map[string]string, len(m.Columns))
	for _, c := range m.Columns {
		task, binary, ok := tasks.Lookup(c.Original)
		if !ok {
			logger.Debug("estimator column matches no task", zap.String("column", c.Name))
			continue
		}
		if binary {
			continue
		}
		owner[c.Name] = task.Name
		groups[task.Kind].names = append(groups[task.Kind].names, c.Name)
	}

	for _, g := range groups {
		for _, t := range g.tasks {
			name := t.Name
			g.blocks[name] = m.Select(func(c features.Column) bool {
				return owner[c.Name] == name
			})
		}
	}
	return groups
}

// requireCoverage checks that every task of an active group has at least
// one estimator column.
func (g *taskGroup) requireCoverage() error {
	for _, t := range g.tasks {
		if len(g.blocks[t.Name].Columns) == 0 {
			return poolerrors.SchemaMismatch(fmt.Sprintf(
				"%s task %s has no estimator columns", g.kind, t.Name))
		}
	}
	return nil
}

// taskNames returns the group's task names in declaration order.
func (g *taskGroup) taskNames() []string {
	names := make([]string, len(g.tasks))
	for i, t := range g.tasks {
		names[i] = t.Name
	}
	return names
}

// pool fits one consensus model for the kind and applies it to every task
// block over rows (all rows when nil). Zero rows yield empty scores.
func (g *taskGroup) pool(rows []int) (map[string][]float64, error) {
	model := consensus.New(g.kind)
	scores := make(map[string][]float64, len(g.tasks))
	for _, t := range g.tasks {
		block := g.blocks[t.Name]
		if len(block.Columns) == 0 {
			return nil, poolerrors.EmptyTaskGroup(string(g.kind))
		}
		if (rows == nil && block.Rows == 0) || (rows != nil && len(rows) == 0) {
			scores[t.Name] = []float64{}
			continue
		}
		X := block.Dense(rows)
		if _, err := model.Fit(X); err != nil {
			return nil, err
		}
		s, err := model.Predict(X)
		if err != nil {
			return nil, err
		}
		scores[t.Name] = s
	}
	return scores, nil
}

// buildPredictions lays out consensus scores in mapping order.
func buildPredictions(ids []string, mapping types.ColumnMapping, scores map[string][]float64) (*table.Table, error) {
	tbl, err := table.New(mapping.OutputColumns())
	if err != nil {
		return nil, err
	}

	for _, kind := range types.Kinds {
		for _, name := range mapping.Tasks(kind) {
			if len(scores[name]) != len(ids) {
				return nil, poolerrors.NewInternalError(fmt.Sprintf(
					"consensus for %s has %d rows, want %d", name, len(scores[name]), len(ids)), nil)
			}
		}
	}

	bins := make(map[string][]int, len(mapping.Classification))
	for _, name := range mapping.Classification {
		bins[name] = consensus.Binarize(scores[name], consensus.DecisionThreshold)
	}

	for i, id := range ids {
		rec := []string{id}
		for _, name := range mapping.Regression {
			rec = append(rec, table.FormatFloat(scores[name][i]))
		}
		for _, name := range mapping.Classification {
			rec = append(rec, table.FormatFloat(scores[name][i]), fmt.Sprint(bins[name][i]))
		}
		if err := tbl.Append(rec); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}

func pick(ids []string, rows []int) []string {
	if rows == nil {
		return ids
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = ids[r]
	}
	return out
}
