package pool

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/molpool/molpool/internal/dataset"
	poolerrors "github.com/molpool/molpool/internal/errors"
	"github.com/molpool/molpool/internal/features"
	"github.com/molpool/molpool/internal/table"
	"github.com/molpool/molpool/pkg/types"
)

// PredictResult is the outcome of a predict run.
type PredictResult struct {
	// Predictions holds the consensus for every compound
	Predictions *table.Table

	// Observed is nil unless the dataset carries labels for every mapped task
	Observed *table.Table

	Mapping    types.ColumnMapping
	Estimators int
	Elapsed    time.Duration
}

// PredictorConfig configures a Predictor.
type PredictorConfig struct {
	Dataset dataset.Options

	// StrictSchema turns an estimator layout change since fit into an error
	StrictSchema bool
}

// Predictor applies the consensus recorded by a previous fit to the
// current compounds.
type Predictor struct {
	rc        *RunContext
	assembler *features.Assembler
	config    PredictorConfig
}

// NewPredictor creates a predictor.
func NewPredictor(rc *RunContext, assembler *features.Assembler, config PredictorConfig) *Predictor {
	return &Predictor{rc: rc, assembler: assembler, config: config}
}

// Run executes the prediction.
func (p *Predictor) Run(ctx context.Context) (*PredictResult, error) {
	p.rc.StartTimer()
	defer p.rc.StopTimer()
	log := p.rc.Logger

	mapping, states, err := LoadBagger(BaggerPath(p.rc.TrainedDir))
	if err != nil {
		return nil, err
	}
	tasks, err := mappedTasks(mapping)
	if err != nil {
		return nil, poolerrors.SchemaMismatch(fmt.Sprintf("trained mapping: %v", err))
	}

	ds, err := dataset.Load(DatasetPath(p.rc.RunDir), p.config.Dataset)
	if err != nil {
		return nil, err
	}

	m, err := p.assembler.Assemble(ctx, ds.Len())
	if err != nil {
		return nil, err
	}

	groups := partition(m.Estimators(), tasks, log)
	scores := make(map[string][]float64)
	pooled := 0

	for _, kind := range types.Kinds {
		g := groups[kind]
		if !mapping.Active(kind) {
			if !g.empty() {
				log.Warn("estimator columns for a kind not pooled at fit time",
					zap.String("kind", string(kind)), zap.Int("columns", len(g.names)))
			}
			continue
		}
		if err := g.requireCoverage(); err != nil {
			return nil, err
		}
		if err := p.checkLayout(kind, g, states[kind]); err != nil {
			return nil, err
		}
		s, err := g.pool(nil)
		if err != nil {
			return nil, fmt.Errorf("pool: predict %s: %w", kind, err)
		}
		for name, v := range s {
			scores[name] = v
		}
		pooled += len(g.names)
	}

	preds, err := buildPredictions(ds.CompoundIDs(), mapping, scores)
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	if err := preds.Write(ResultsPath(p.rc.RunDir)); err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	var observed *table.Table
	names := append(append([]string{}, mapping.Regression...), mapping.Classification...)
	if ds.HasLabels(names) {
		observed, err = ds.Table.Project(append([]string{ds.IDColumn}, names...))
		if err != nil {
			return nil, fmt.Errorf("pool: %w", err)
		}
	}

	log.Info("consensus applied",
		zap.Int("compounds", ds.Len()),
		zap.Int("columns", pooled),
		zap.Bool("labelled", observed != nil))

	return &PredictResult{
		Predictions: preds,
		Observed:    observed,
		Mapping:     mapping,
		Estimators:  pooled,
		Elapsed:     p.rc.Elapsed(),
	}, nil
}

func (p *Predictor) checkLayout(kind types.TaskKind, g *taskGroup, trained GroupState) error {
	fp := g.fingerprint()
	if trained.Fingerprint == fp {
		return nil
	}
	if p.config.StrictSchema {
		return poolerrors.SchemaMismatch(fmt.Sprintf(
			"%s estimator columns changed since fit (%d now, %d trained)", kind, len(g.names), trained.Columns))
	}
	p.rc.Logger.Warn("estimator columns changed since fit",
		zap.String("kind", string(kind)),
		zap.Int("columns", len(g.names)),
		zap.Int("trained_columns", trained.Columns))
	return nil
}

// mappedTasks rebuilds task descriptors from a persisted mapping.
func mappedTasks(mapping types.ColumnMapping) (*types.TaskSet, error) {
	var tasks []types.Task
	for _, name := range mapping.Regression {
		tasks = append(tasks, types.Task{Name: name, Kind: types.Regression})
	}
	for _, name := range mapping.Classification {
		tasks = append(tasks, types.Task{Name: name, Kind: types.Classification, HasBinaryChannel: true})
	}
	return types.NewTaskSet(tasks)
}
