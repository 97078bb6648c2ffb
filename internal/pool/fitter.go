package pool

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/molpool/molpool/internal/dataset"
	"github.com/molpool/molpool/internal/features"
	"github.com/molpool/molpool/internal/table"
	"github.com/molpool/molpool/pkg/types"
)

// Dataset locations, relative to a run directory.
const (
	DataDir            = "data"
	DatasetFilename    = "data.csv"
	ValidationFilename = "validation.json"
)

// DatasetPath returns the compound table of runDir.
func DatasetPath(runDir string) string {
	return filepath.Join(runDir, DataDir, DatasetFilename)
}

// FitResult is the outcome of a fit run.
type FitResult struct {
	// Predictions holds the consensus for the validation rows
	Predictions *table.Table

	// Observed holds the labels of the validation rows
	Observed *table.Table

	Mapping types.ColumnMapping
	Groups  Groups

	// Estimators is the number of pooled estimator score columns
	Estimators int

	Elapsed time.Duration
}

// Fitter pools the estimator predictions of the validation subset and
// persists the column mapping used later by Predictor.
type Fitter struct {
	rc        *RunContext
	assembler *features.Assembler
	opts      dataset.Options
}

// NewFitter creates a fitter.
func NewFitter(rc *RunContext, assembler *features.Assembler, opts dataset.Options) *Fitter {
	return &Fitter{rc: rc, assembler: assembler, opts: opts}
}

// Run executes the fit.
func (f *Fitter) Run(ctx context.Context) (*FitResult, error) {
	f.rc.StartTimer()
	defer f.rc.StopTimer()
	log := f.rc.Logger

	ds, err := dataset.Load(DatasetPath(f.rc.RunDir), f.opts)
	if err != nil {
		return nil, err
	}
	rows, err := dataset.LoadValidationIndices(
		filepath.Join(f.rc.RunDir, DataDir, ValidationFilename), ds.Len())
	if err != nil {
		return nil, err
	}
	log.Info("dataset loaded",
		zap.Int("compounds", ds.Len()),
		zap.Int("validation", len(rows)),
		zap.Int("tasks", ds.Tasks.Len()))

	m, err := f.assembler.Assemble(ctx, ds.Len())
	if err != nil {
		return nil, err
	}
	est := m.Estimators()

	var all []string
	for _, t := range ds.Tasks.All() {
		all = append(all, t.Name)
	}
	observed, err := ds.Labels(all, rows)
	if err != nil {
		return nil, err
	}

	groups := partition(est, ds.Tasks, log)
	mapping := types.ColumnMapping{}.Normalize()
	states := make(Groups, len(types.Kinds))
	scores := make(map[string][]float64)
	pooled := 0

	for _, kind := range types.Kinds {
		g := groups[kind]
		if g.empty() {
			log.Info("no estimator columns, skipping kind", zap.String("kind", string(kind)))
			states[kind] = GroupState{Active: false, Fingerprint: g.fingerprint()}
			continue
		}
		if err := g.requireCoverage(); err != nil {
			return nil, err
		}
		s, err := g.pool(rows)
		if err != nil {
			return nil, fmt.Errorf("pool: fit %s: %w", kind, err)
		}
		for name, v := range s {
			scores[name] = v
		}
		switch kind {
		case types.Regression:
			mapping.Regression = g.taskNames()
		case types.Classification:
			mapping.Classification = g.taskNames()
		}
		states[kind] = GroupState{Active: true, Columns: len(g.names), Fingerprint: g.fingerprint()}
		pooled += len(g.names)
		log.Info("consensus fitted",
			zap.String("kind", string(kind)),
			zap.Strings("tasks", g.taskNames()),
			zap.Int("columns", len(g.names)))
	}

	if err := SaveBagger(BaggerPath(f.rc.RunDir), mapping, states); err != nil {
		return nil, err
	}

	preds, err := buildPredictions(pick(ds.CompoundIDs(), rows), mapping, scores)
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	if err := preds.Write(ResultsPath(f.rc.RunDir)); err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	return &FitResult{
		Predictions: preds,
		Observed:    observed,
		Mapping:     mapping,
		Groups:      states,
		Estimators:  pooled,
		Elapsed:     f.rc.Elapsed(),
	}, nil
}
