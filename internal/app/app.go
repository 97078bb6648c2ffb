// Package app runs one molpool stage end to end: pooling, evaluation,
// metric export and artifact publishing.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/molpool/molpool/internal/config"
	"github.com/molpool/molpool/internal/dataset"
	poolerrors "github.com/molpool/molpool/internal/errors"
	"github.com/molpool/molpool/internal/evaluate"
	"github.com/molpool/molpool/internal/features"
	"github.com/molpool/molpool/internal/logger"
	"github.com/molpool/molpool/internal/manifest"
	"github.com/molpool/molpool/internal/observability"
	"github.com/molpool/molpool/internal/pool"
	"github.com/molpool/molpool/internal/storage"
	"github.com/molpool/molpool/internal/table"
	"github.com/molpool/molpool/pkg/types"
)

// Result summarizes a finished run.
type Result struct {
	RunID     string
	Mode      config.Mode
	Mapping   types.ColumnMapping
	Reports   *evaluate.Reports
	Published []string
}

// App runs a single configured stage.
type App struct {
	cfg *config.Config

	storage   storage.ObjectStorage
	publisher *storage.Publisher
	metrics   *observability.RunMetrics
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	// Resolve paths and validate
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg:     cfg,
		metrics: observability.NewRunMetrics(string(cfg.Mode)),
	}, nil
}

// Metrics exposes the metrics of the run.
func (a *App) Metrics() *observability.RunMetrics {
	return a.metrics
}

// Run executes the configured stage. The logger is taken from ctx.
func (a *App) Run(ctx context.Context) (*Result, error) {
	log := logger.FromContext(ctx)

	if err := a.initStorage(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	rc := pool.NewRunContext(a.cfg.DataDir, a.cfg.TrainedDir, log)
	rc.Logger.Info("run started",
		zap.String("mode", string(a.cfg.Mode)),
		zap.String("data_dir", a.cfg.DataDir))

	res := &Result{RunID: rc.RunID, Mode: a.cfg.Mode}
	var err error
	switch a.cfg.Mode {
	case config.ModeFit:
		err = a.fit(ctx, rc, res)
	case config.ModePredict:
		err = a.predict(ctx, rc, res)
	case config.ModeEvaluate:
		err = a.evaluateOnly(rc, res)
	}

	if err != nil {
		a.metrics.MarkFailure(string(poolerrors.GetCategory(err)))
	} else {
		a.metrics.MarkSuccess(time.Now())
	}
	a.exportMetrics(ctx, rc)
	if err != nil {
		rc.Logger.Error("run failed", zap.Error(err))
		return nil, err
	}

	if a.publisher != nil {
		published, err := a.publisher.Publish(ctx, rc.RunID, a.cfg.DataDir, a.artifacts())
		if err != nil {
			return nil, fmt.Errorf("failed to publish artifacts: %w", err)
		}
		res.Published = published
	}

	rc.Logger.Info("run finished", zap.Duration("elapsed", rc.Elapsed()))
	return res, nil
}

// initStorage creates the object storage client when publishing is enabled.
func (a *App) initStorage(ctx context.Context, log *zap.Logger) error {
	var err error

	switch a.cfg.Storage.Type {
	case storage.TypeNone:
		return nil
	case storage.TypeLocal:
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case storage.TypeS3:
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3Cfg.Region = a.cfg.Storage.S3.Region
		}
		if a.cfg.Storage.S3.Endpoint != "" {
			s3Cfg.Endpoint = a.cfg.Storage.S3.Endpoint
		}
		s3Cfg.UsePathStyle = a.cfg.Storage.S3.UsePathStyle
		a.storage, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return err
	}

	a.publisher = storage.NewPublisher(a.storage, a.cfg.Storage.Prefix, log)
	return nil
}

func (a *App) assembler(rc *pool.RunContext) (*features.Assembler, manifest.Reader, error) {
	reader, err := manifest.Open(a.cfg.Manifest.Type, a.cfg.Manifest.Path)
	if err != nil {
		return nil, nil, err
	}
	asm := features.NewAssembler(features.AssemblerConfig{
		RunDir:          a.cfg.DataDir,
		Methods:         a.cfg.Embeddings.Methods,
		IDColumn:        a.cfg.Dataset.IDColumn,
		StructureColumn: a.cfg.Dataset.StructureColumn,
	}, reader, rc.Logger)
	return asm, reader, nil
}

func (a *App) datasetOptions() dataset.Options {
	return dataset.Options{
		IDColumn:       a.cfg.Dataset.IDColumn,
		TaskSchemaPath: a.cfg.Dataset.TaskSchema,
	}
}

func (a *App) fit(ctx context.Context, rc *pool.RunContext, res *Result) error {
	asm, reader, err := a.assembler(rc)
	if err != nil {
		return err
	}
	defer reader.Close()

	out, err := pool.NewFitter(rc, asm, a.datasetOptions()).Run(ctx)
	if err != nil {
		return err
	}
	res.Mapping = out.Mapping
	a.observePool(out.Elapsed, out.Predictions.Len(), out.Estimators, out.Mapping)

	if a.cfg.Evaluate.Enabled {
		res.Reports, err = a.evaluate(rc, out.Observed, out.Predictions, out.Mapping)
	}
	return err
}

func (a *App) predict(ctx context.Context, rc *pool.RunContext, res *Result) error {
	if prefix := a.cfg.Storage.TrainedPrefix; prefix != "" {
		sub := filepath.Join(pool.PoolDir, pool.BaggerDir)
		if _, err := a.publisher.FetchTrained(ctx, prefix, sub, a.cfg.TrainedDir); err != nil {
			return err
		}
	}

	asm, reader, err := a.assembler(rc)
	if err != nil {
		return err
	}
	defer reader.Close()

	out, err := pool.NewPredictor(rc, asm, pool.PredictorConfig{
		Dataset:      a.datasetOptions(),
		StrictSchema: a.cfg.Pool.StrictSchema,
	}).Run(ctx)
	if err != nil {
		return err
	}
	res.Mapping = out.Mapping
	a.observePool(out.Elapsed, out.Predictions.Len(), out.Estimators, out.Mapping)

	if a.cfg.Evaluate.Enabled && out.Observed != nil {
		res.Reports, err = a.evaluate(rc, out.Observed, out.Predictions, out.Mapping)
	} else if out.Observed == nil {
		rc.Logger.Info("dataset carries no labels, skipping evaluation")
	}
	return err
}

// evaluateOnly scores an existing prediction table against the dataset
// labels. Predictions covering the validation subset are aligned with it.
func (a *App) evaluateOnly(rc *pool.RunContext, res *Result) error {
	rc.StartTimer()
	defer rc.StopTimer()

	baggerRun := a.cfg.DataDir
	if a.cfg.TrainedDir != "" {
		baggerRun = a.cfg.TrainedDir
	}
	mapping, _, err := pool.LoadBagger(pool.BaggerPath(baggerRun))
	if err != nil {
		return err
	}
	res.Mapping = mapping

	predsPath := pool.ResultsPath(a.cfg.DataDir)
	preds, err := table.Read(predsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return poolerrors.MissingArtifact(predsPath, err)
		}
		return fmt.Errorf("app: %w", err)
	}

	ds, err := dataset.Load(pool.DatasetPath(a.cfg.DataDir), a.datasetOptions())
	if err != nil {
		return err
	}

	// predictions may cover a reordered subset; align labels by compound id
	ids, err := preds.Strings(types.CompoundIDColumn)
	if err != nil {
		return poolerrors.Wrap(poolerrors.ErrCategorySchema, poolerrors.CodeSchemaMismatch,
			"prediction table has no identifier column", err)
	}
	rows, err := ds.RowsByID(ids)
	if err != nil {
		return err
	}
	names := append(append([]string{}, mapping.Regression...), mapping.Classification...)
	observed, err := ds.Labels(names, rows)
	if err != nil {
		return err
	}

	res.Reports, err = a.evaluate(rc, observed, preds, mapping)
	return err
}

func (a *App) evaluate(rc *pool.RunContext, observed, preds *table.Table, mapping types.ColumnMapping) (*evaluate.Reports, error) {
	reports, err := evaluate.NewEvaluator(rc.Logger).Evaluate(observed, preds, mapping)
	if err != nil {
		return nil, err
	}
	paths, err := evaluate.NewReporter(a.cfg.DataDir).Write(reports)
	if err != nil {
		return nil, err
	}
	rc.Logger.Info("performance reports written", zap.Strings("paths", paths))

	if r := reports.Regression; r != nil {
		a.metrics.SetEvaluation(r.Task, "r2_score", r.R2)
		a.metrics.SetEvaluation(r.Task, "mean_absolute_error", r.MAE)
		a.metrics.SetEvaluation(r.Task, "mean_squared_error", r.MSE)
	}
	if r := reports.Classification; r != nil {
		a.metrics.SetEvaluation(r.Task, "roc_auc_score", r.ROCAUC)
		a.metrics.SetEvaluation(r.Task, "precision_score", r.Precision)
		a.metrics.SetEvaluation(r.Task, "recall_score", r.Recall)
	}
	return reports, nil
}

func (a *App) observePool(elapsed time.Duration, compounds, estimators int, mapping types.ColumnMapping) {
	a.metrics.ObservePool(elapsed, compounds, estimators)
	for _, kind := range types.Kinds {
		a.metrics.SetActiveTasks(string(kind), len(mapping.Tasks(kind)))
	}
}

// exportMetrics writes the textfile and pushes to the gateway. Export
// failures are logged and never fail the run.
func (a *App) exportMetrics(ctx context.Context, rc *pool.RunContext) {
	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			rc.Logger.Warn("failed to write metrics textfile", zap.Error(err))
		}
	}
	if url := a.cfg.Metrics.PushgatewayURL; url != "" {
		if err := a.metrics.Push(ctx, url, a.cfg.Metrics.Job, rc.RunID); err != nil {
			rc.Logger.Warn("failed to push metrics", zap.Error(err))
		}
	}
}

// artifacts lists the run outputs that exist, relative to the data dir.
func (a *App) artifacts() []string {
	candidates := []string{
		filepath.Join(pool.PoolDir, features.DataFilename),
		filepath.Join(pool.PoolDir, pool.ResultsFilename),
		filepath.Join(pool.PoolDir, pool.BaggerDir, pool.MappingFilename),
		filepath.Join(pool.PoolDir, pool.BaggerDir, pool.GroupsFilename),
		filepath.Join(evaluate.ReportDir, evaluate.ClassificationReportFile),
		filepath.Join(evaluate.ReportDir, evaluate.RegressionReportFile),
	}
	if rel, err := filepath.Rel(a.cfg.DataDir, a.cfg.Metrics.TextfilePath); err == nil && !strings.HasPrefix(rel, "..") {
		candidates = append(candidates, rel)
	}

	var files []string
	for _, rel := range candidates {
		if _, err := os.Stat(filepath.Join(a.cfg.DataDir, rel)); err == nil {
			files = append(files, rel)
		}
	}
	return files
}
