package features

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/molpool/molpool/internal/embedding"
	poolerrors "github.com/molpool/molpool/internal/errors"
	"github.com/molpool/molpool/internal/manifest"
	"github.com/molpool/molpool/internal/table"
	"github.com/molpool/molpool/pkg/types"
)

// Layout of a run directory.
const (
	DescriptorsDir = "descriptors"
	EstimatorsDir  = "estimators"
	PoolDir        = "pool"
	DataFilename   = "data.csv"
)

// DefaultStructureColumn is the structural identifier dropped from
// estimator tables.
const DefaultStructureColumn = "smiles"

// AssemblerConfig configures an Assembler.
type AssemblerConfig struct {
	// RunDir holds descriptors/, estimators/ and pool/
	RunDir string

	// Methods are the embedding methods to include, in order
	Methods []string

	// IDColumn and StructureColumn are dropped from estimator tables
	IDColumn        string
	StructureColumn string
}

// Assembler builds the feature matrix of one run.
type Assembler struct {
	config   AssemblerConfig
	manifest manifest.Reader
	logger   *zap.Logger
}

// NewAssembler creates an assembler reading finished estimators from m.
func NewAssembler(config AssemblerConfig, m manifest.Reader, logger *zap.Logger) *Assembler {
	if config.Methods == nil {
		config.Methods = embedding.DefaultMethods
	}
	if config.IDColumn == "" {
		config.IDColumn = types.CompoundIDColumn
	}
	if config.StructureColumn == "" {
		config.StructureColumn = DefaultStructureColumn
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{config: config, manifest: m, logger: logger}
}

// Assemble builds the matrix for nCompounds rows and persists it as
// pool/data.csv.
func (a *Assembler) Assemble(ctx context.Context, nCompounds int) (*Matrix, error) {
	m := newMatrix(nCompounds)

	if err := a.addEmbeddings(m); err != nil {
		return nil, err
	}
	if err := a.addEstimators(ctx, m); err != nil {
		return nil, err
	}

	tbl, err := m.Table()
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	out := filepath.Join(a.config.RunDir, PoolDir, DataFilename)
	if err := tbl.Write(out); err != nil {
		return nil, fmt.Errorf("features: persist %s: %w", out, err)
	}

	a.logger.Info("feature matrix assembled",
		zap.Int("rows", m.Rows),
		zap.Int("columns", len(m.Columns)),
		zap.String("path", out))
	return m, nil
}

func (a *Assembler) addEmbeddings(m *Matrix) error {
	dir := filepath.Join(a.config.RunDir, DescriptorsDir)
	artifacts, err := embedding.LoadAll(dir, a.config.Methods)
	if err != nil {
		return err
	}
	for _, art := range artifacts {
		rows, cols := art.Values.Dims()
		if rows != m.Rows {
			return poolerrors.SchemaMismatch(fmt.Sprintf(
				"embedding %s has %d rows, dataset has %d compounds", art.Method, rows, m.Rows))
		}
		for j := 0; j < cols; j++ {
			col := Column{
				Name:   fmt.Sprintf("%s-%d", art.Method, j),
				Source: SourceEmbedding,
				Method: art.Method,
			}
			if err := m.add(col, mat.Col(nil, j, art.Values)); err != nil {
				return err
			}
		}
		a.logger.Debug("embedding added", zap.String("method", art.Method), zap.Int("dims", cols))
	}
	return nil
}

func (a *Assembler) addEstimators(ctx context.Context, m *Matrix) error {
	runs, err := a.manifest.Completed(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		seen[c.Name] = true
	}

	root := filepath.Join(a.config.RunDir, EstimatorsDir)
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := run.ResultsPath(root)
		tbl, err := table.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return poolerrors.MissingArtifact(path, err)
			}
			return fmt.Errorf("features: read %s: %w", path, err)
		}
		if tbl.Len() != m.Rows {
			return poolerrors.SchemaMismatch(fmt.Sprintf(
				"estimator %s has %d rows, dataset has %d compounds", run.Prefix(), tbl.Len(), m.Rows))
		}

		prefix := run.Prefix()
		for _, name := range tbl.Header() {
			if name == a.config.IDColumn || name == a.config.StructureColumn {
				continue
			}
			col := Column{
				Name:      prefix + "-" + name,
				Source:    SourceEstimator,
				Estimator: prefix,
				Original:  name,
			}
			if seen[col.Name] {
				return poolerrors.SchemaMismatch(fmt.Sprintf("duplicate feature column %s", col.Name))
			}
			seen[col.Name] = true

			values, err := tbl.Floats(name)
			if err != nil {
				return fmt.Errorf("features: estimator %s: %w", prefix, err)
			}
			if err := m.add(col, values); err != nil {
				return err
			}
		}
	}
	a.logger.Debug("estimator columns added", zap.Int("estimators", len(runs)))
	return nil
}
