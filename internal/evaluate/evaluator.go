package evaluate

import (
	"fmt"

	"go.uber.org/zap"

	poolerrors "github.com/molpool/molpool/internal/errors"
	"github.com/molpool/molpool/internal/table"
	"github.com/molpool/molpool/pkg/types"
)

// Reports groups the per-kind reports of one run. A nil report means the
// kind had no task to evaluate.
type Reports struct {
	Classification *ClassificationReport
	Regression     *RegressionReport
}

// Evaluator compares observed labels with consensus predictions.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger}
}

// Evaluate scores the first task of each kind in mapping. Tables are
// aligned by row position.
func (e *Evaluator) Evaluate(observed, predicted *table.Table, mapping types.ColumnMapping) (*Reports, error) {
	if observed.Len() != predicted.Len() {
		return nil, poolerrors.SchemaMismatch(fmt.Sprintf(
			"observed has %d rows, predictions have %d", observed.Len(), predicted.Len()))
	}

	out := &Reports{}
	if tasks := mapping.Regression; len(tasks) > 0 {
		task := tasks[0]
		yTrue, err := column(observed, task, "observed")
		if err != nil {
			return nil, err
		}
		yPred, err := column(predicted, task, "predicted")
		if err != nil {
			return nil, err
		}
		r, err := Regression(yTrue, yPred)
		if err != nil {
			return nil, err
		}
		r.Task = task
		out.Regression = r
		e.logger.Info("regression evaluated",
			zap.String("task", task),
			zap.Float64("r2", r.R2),
			zap.Float64("mae", r.MAE),
			zap.Float64("mse", r.MSE))
	}

	if tasks := mapping.Classification; len(tasks) > 0 {
		task := tasks[0]
		if !observed.Has(task) {
			return nil, poolerrors.SchemaMismatch(fmt.Sprintf("observed table lacks %s", task))
		}
		yTrue, err := observed.Ints(task)
		if err != nil {
			return nil, poolerrors.MetricComputation("y_true", err.Error())
		}
		yPred, err := column(predicted, task, "predicted")
		if err != nil {
			return nil, err
		}
		binCol := task + types.BinarySuffix
		if !predicted.Has(binCol) {
			return nil, poolerrors.SchemaMismatch(fmt.Sprintf("predicted table lacks %s", binCol))
		}
		bPred, err := predicted.Ints(binCol)
		if err != nil {
			return nil, poolerrors.MetricComputation("b_pred", err.Error())
		}
		r, err := Classification(yTrue, yPred, bPred)
		if err != nil {
			return nil, err
		}
		r.Task = task
		out.Classification = r
		e.logger.Info("classification evaluated",
			zap.String("task", task),
			zap.Float64("roc_auc", r.ROCAUC),
			zap.Float64("precision", r.Precision),
			zap.Float64("recall", r.Recall))
	}
	return out, nil
}

func column(tbl *table.Table, name, which string) ([]float64, error) {
	if !tbl.Has(name) {
		return nil, poolerrors.SchemaMismatch(fmt.Sprintf("%s table lacks %s", which, name))
	}
	v, err := tbl.Floats(name)
	if err != nil {
		return nil, poolerrors.MetricComputation(name, err.Error())
	}
	return v, nil
}
