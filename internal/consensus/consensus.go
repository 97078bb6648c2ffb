// Package consensus implements the unweighted mean ensemble that turns the
// estimator columns of one task into a single prediction per compound.
package consensus

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	poolerrors "github.com/molpool/molpool/internal/errors"
	"github.com/molpool/molpool/pkg/types"
)

// DecisionThreshold separates positive from negative classification scores.
const DecisionThreshold = 0.5

// Model averages its input columns. Fit learns nothing; it only checks that
// there is something to average.
type Model struct {
	kind   types.TaskKind
	fitted bool
}

// New creates a model for one task kind.
func New(kind types.TaskKind) *Model {
	return &Model{kind: kind}
}

// Kind returns the task kind the model serves.
func (m *Model) Kind() types.TaskKind {
	return m.kind
}

// Fit validates X and returns m for chaining.
func (m *Model) Fit(X mat.Matrix) (*Model, error) {
	if err := checkInput(m.kind, X); err != nil {
		return nil, err
	}
	m.fitted = true
	return m, nil
}

// Predict returns the arithmetic mean of every row of X.
func (m *Model) Predict(X mat.Matrix) ([]float64, error) {
	if err := checkInput(m.kind, X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = stat.Mean(mat.Row(nil, i, X), nil)
	}
	return out, nil
}

// Binarize maps each score to 1 when it is strictly greater than threshold.
func Binarize(scores []float64, threshold float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		if s > threshold {
			out[i] = 1
		}
	}
	return out
}

func checkInput(kind types.TaskKind, X mat.Matrix) error {
	if X == nil {
		return poolerrors.EmptyTaskGroup(string(kind))
	}
	if d, ok := X.(*mat.Dense); ok && d == nil {
		return poolerrors.EmptyTaskGroup(string(kind))
	}
	if _, c := X.Dims(); c == 0 {
		return poolerrors.EmptyTaskGroup(string(kind))
	}
	return nil
}
