package pool

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/molpool/molpool/internal/dataset"
	poolerrors "github.com/molpool/molpool/internal/errors"
	"github.com/molpool/molpool/internal/features"
	"github.com/molpool/molpool/internal/fixture"
	"github.com/molpool/molpool/internal/manifest"
	"github.com/molpool/molpool/internal/table"
	"github.com/molpool/molpool/pkg/types"
)

func newAssembler(dir string) *features.Assembler {
	m := manifest.NewJSONManifest(filepath.Join(dir, features.EstimatorsDir, "done.json"))
	return features.NewAssembler(features.AssemblerConfig{RunDir: dir}, m, nil)
}

func fit(t *testing.T, dir string) (*FitResult, error) {
	t.Helper()
	rc := NewRunContext(dir, "", nil)
	return NewFitter(rc, newAssembler(dir), dataset.Options{}).Run(context.Background())
}

func predict(t *testing.T, dir, trained string, strict bool) (*PredictResult, error) {
	t.Helper()
	rc := NewRunContext(dir, trained, nil)
	return NewPredictor(rc, newAssembler(dir), PredictorConfig{StrictSchema: strict}).Run(context.Background())
}

func floats(t *testing.T, tbl *table.Table, col string) []float64 {
	t.Helper()
	v, err := tbl.Floats(col)
	if err != nil {
		t.Fatalf("column %s: %v", col, err)
	}
	return v
}

func approxEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

// mixedRun has one regression and one classification task, each predicted
// by two estimators.
func mixedRun() fixture.Run {
	return fixture.Run{
		IDs:    fixture.IDs(4),
		Labels: []string{"reg_y", "clf_z", "clf_z_bin"},
		LabelRows: fixture.Rows(
			fixture.Column(2, 2, 2, 2),
			fixture.Column(0, 1, 0, 1),
			fixture.Column(0, 1, 0, 1),
		),
		Validation: []int{0, 1, 2, 3},
		Estimators: []fixture.Estimator{
			{Segments: []string{"m1", "reg_y"}, Columns: []string{"reg_y"}, Values: [][]float64{{1, 2, 3, 4}}},
			{Segments: []string{"m2", "reg_y"}, Columns: []string{"reg_y"}, Values: [][]float64{{3, 2, 1, 0}}},
			{Segments: []string{"m1", "clf_z"}, Columns: []string{"clf_z", "clf_z_bin"},
				Values: [][]float64{{0.1, 0.9, 0.2, 0.6}, {0, 1, 0, 1}}},
			{Segments: []string{"m2", "clf_z"}, Columns: []string{"clf_z", "clf_z_bin"},
				Values: [][]float64{{0.3, 0.7, 0.4, 0.8}, {0, 1, 0, 1}}},
		},
	}
}

func TestFitter_MixedRun(t *testing.T) {
	dir := fixture.Write(t, t.TempDir(), mixedRun())

	res, err := fit(t, dir)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	wantCols := []string{types.CompoundIDColumn, "reg_y", "clf_z", "clf_z_bin"}
	if !reflect.DeepEqual(res.Predictions.Header(), wantCols) {
		t.Errorf("header = %v, want %v", res.Predictions.Header(), wantCols)
	}
	if got := floats(t, res.Predictions, "reg_y"); !approxEqual(got, []float64{2, 2, 2, 2}) {
		t.Errorf("reg_y = %v", got)
	}
	if got := floats(t, res.Predictions, "clf_z"); !approxEqual(got, []float64{0.2, 0.8, 0.3, 0.7}) {
		t.Errorf("clf_z = %v", got)
	}
	if got, _ := res.Predictions.Ints("clf_z_bin"); !reflect.DeepEqual(got, []int{0, 1, 0, 1}) {
		t.Errorf("clf_z_bin = %v", got)
	}

	if !reflect.DeepEqual(res.Observed.Header(), []string{types.CompoundIDColumn, "reg_y", "clf_z"}) {
		t.Errorf("observed header = %v", res.Observed.Header())
	}
	if res.Estimators != 4 {
		t.Errorf("Estimators = %d, want 4", res.Estimators)
	}

	mapping, groups, err := LoadBagger(BaggerPath(dir))
	if err != nil {
		t.Fatalf("LoadBagger failed: %v", err)
	}
	want := types.ColumnMapping{Regression: []string{"reg_y"}, Classification: []string{"clf_z"}}
	if !reflect.DeepEqual(mapping, want) {
		t.Errorf("mapping = %+v, want %+v", mapping, want)
	}
	if !groups[types.Regression].Active || groups[types.Regression].Columns != 2 {
		t.Errorf("regression group = %+v", groups[types.Regression])
	}

	written, err := table.Read(ResultsPath(dir))
	if err != nil {
		t.Fatalf("results not written: %v", err)
	}
	if !reflect.DeepEqual(written.Header(), mapping.OutputColumns()) || written.Len() != 4 {
		t.Errorf("written header %v rows %d", written.Header(), written.Len())
	}
}

func TestFitter_ValidationSubset(t *testing.T) {
	run := mixedRun()
	run.Validation = []int{3, 1}
	dir := fixture.Write(t, t.TempDir(), run)

	res, err := fit(t, dir)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if res.Predictions.Len() != 2 {
		t.Fatalf("rows = %d, want 2", res.Predictions.Len())
	}
	ids, _ := res.Predictions.Strings(types.CompoundIDColumn)
	if !reflect.DeepEqual(ids, []string{"c3", "c1"}) {
		t.Errorf("ids = %v", ids)
	}
	if got := floats(t, res.Predictions, "clf_z"); !approxEqual(got, []float64{0.7, 0.8}) {
		t.Errorf("clf_z = %v", got)
	}
}

func TestFitter_RegressionOnly(t *testing.T) {
	run := mixedRun()
	run.Labels = []string{"reg_y"}
	run.LabelRows = fixture.Rows(fixture.Column(2, 2, 2, 2))
	run.Estimators = run.Estimators[:2]
	dir := fixture.Write(t, t.TempDir(), run)

	res, err := fit(t, dir)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if res.Mapping.Active(types.Classification) {
		t.Error("classification should be inactive")
	}
	if !reflect.DeepEqual(res.Predictions.Header(), []string{types.CompoundIDColumn, "reg_y"}) {
		t.Errorf("header = %v", res.Predictions.Header())
	}

	raw, err := os.ReadFile(filepath.Join(BaggerPath(dir), MappingFilename))
	if err != nil {
		t.Fatal(err)
	}
	var m types.ColumnMapping
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m.Classification == nil || len(m.Classification) != 0 {
		t.Errorf("classification mapping should be an empty list, got %#v", m.Classification)
	}
}

func TestFitter_UncoveredTask(t *testing.T) {
	run := mixedRun()
	run.Labels = append(run.Labels, "reg_w")
	for i := range run.LabelRows {
		run.LabelRows[i] = append(run.LabelRows[i], "1")
	}
	dir := fixture.Write(t, t.TempDir(), run)

	if _, err := fit(t, dir); !errors.Is(err, poolerrors.ErrSchemaMismatch) {
		t.Errorf("expected schema mismatch, got %v", err)
	}
}

func TestFitter_InvalidValidationIndex(t *testing.T) {
	run := mixedRun()
	run.Validation = []int{0, 9}
	dir := fixture.Write(t, t.TempDir(), run)

	_, err := fit(t, dir)
	if poolerrors.GetCode(err) != poolerrors.CodeInvalidIndex {
		t.Errorf("expected invalid index, got %v", err)
	}
}

func TestFitter_EmptyValidationSubset(t *testing.T) {
	run := mixedRun()
	run.Validation = []int{}
	dir := fixture.Write(t, t.TempDir(), run)

	_, err := fit(t, dir)
	if poolerrors.GetCode(err) != poolerrors.CodeInvalidIndex {
		t.Errorf("expected invalid index, got %v", err)
	}
}

func TestFitter_IgnoresEmbeddings(t *testing.T) {
	run := mixedRun()
	run.Embeddings = map[string]mat.Matrix{
		"pca": mat.NewDense(4, 2, []float64{9, -9, 8, -8, 7, -7, 6, -6}),
	}
	dir := fixture.Write(t, t.TempDir(), run)

	res, err := fit(t, dir)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	pooled, err := table.Read(filepath.Join(dir, features.PoolDir, features.DataFilename))
	if err != nil {
		t.Fatal(err)
	}
	if !pooled.Has("pca-0") || !pooled.Has("pca-1") {
		t.Fatalf("embedding missing from feature matrix: %v", pooled.Header())
	}

	if res.Estimators != 4 {
		t.Errorf("Estimators = %d, want 4", res.Estimators)
	}
	if got := floats(t, res.Predictions, "reg_y"); !approxEqual(got, []float64{2, 2, 2, 2}) {
		t.Errorf("reg_y = %v", got)
	}
	if got := floats(t, res.Predictions, "clf_z"); !approxEqual(got, []float64{0.2, 0.8, 0.3, 0.7}) {
		t.Errorf("clf_z = %v", got)
	}

	// the embedding must not shift the layout recorded for predict
	plain := fixture.Write(t, t.TempDir(), mixedRun())
	if _, err := predict(t, plain, dir, true); err != nil {
		t.Errorf("strict predict without embedding failed: %v", err)
	}
}

func TestPredictor_ZeroCompounds(t *testing.T) {
	trained := fixture.Write(t, t.TempDir(), mixedRun())
	if _, err := fit(t, trained); err != nil {
		t.Fatal(err)
	}

	run := mixedRun()
	run.IDs = nil
	run.Labels, run.LabelRows, run.Validation = nil, nil, nil
	for i := range run.Estimators {
		for j := range run.Estimators[i].Values {
			run.Estimators[i].Values[j] = nil
		}
	}
	dir := fixture.Write(t, t.TempDir(), run)

	res, err := predict(t, dir, trained, true)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if res.Predictions.Len() != 0 {
		t.Errorf("rows = %d, want 0", res.Predictions.Len())
	}

	written, err := table.Read(ResultsPath(dir))
	if err != nil {
		t.Fatalf("results not written: %v", err)
	}
	if !reflect.DeepEqual(written.Header(), res.Mapping.OutputColumns()) || written.Len() != 0 {
		t.Errorf("written header %v rows %d", written.Header(), written.Len())
	}
}

func TestBuildPredictions_ShortConsensus(t *testing.T) {
	mapping := types.ColumnMapping{Regression: []string{"reg_y"}, Classification: []string{}}
	scores := map[string][]float64{"reg_y": {1}}

	_, err := buildPredictions([]string{"c0", "c1"}, mapping, scores)
	if poolerrors.GetCategory(err) != poolerrors.ErrCategoryInternal {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestPredictor_AppliesTrainedMapping(t *testing.T) {
	trained := fixture.Write(t, t.TempDir(), mixedRun())
	if _, err := fit(t, trained); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	run := mixedRun()
	run.Labels, run.LabelRows, run.Validation = nil, nil, nil
	dir := fixture.Write(t, t.TempDir(), run)

	res, err := predict(t, dir, trained, true)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if res.Predictions.Len() != 4 {
		t.Errorf("rows = %d, want 4", res.Predictions.Len())
	}
	if res.Observed != nil {
		t.Error("observed should be nil without labels")
	}
	if got := floats(t, res.Predictions, "reg_y"); !approxEqual(got, []float64{2, 2, 2, 2}) {
		t.Errorf("reg_y = %v", got)
	}
	if _, err := os.Stat(ResultsPath(dir)); err != nil {
		t.Errorf("results not written: %v", err)
	}
}

func TestPredictor_ObservedWhenLabelled(t *testing.T) {
	trained := fixture.Write(t, t.TempDir(), mixedRun())
	if _, err := fit(t, trained); err != nil {
		t.Fatal(err)
	}
	dir := fixture.Write(t, t.TempDir(), mixedRun())

	res, err := predict(t, dir, trained, false)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if res.Observed == nil || res.Observed.Len() != 4 {
		t.Fatalf("expected observed labels for 4 compounds")
	}
}

func TestPredictor_MissingMapping(t *testing.T) {
	dir := fixture.Write(t, t.TempDir(), mixedRun())

	_, err := predict(t, dir, t.TempDir(), false)
	if !errors.Is(err, poolerrors.ErrMissingArtifact) {
		t.Errorf("expected missing artifact, got %v", err)
	}
}

func TestPredictor_EmptyActiveGroup(t *testing.T) {
	trained := fixture.Write(t, t.TempDir(), mixedRun())
	if _, err := fit(t, trained); err != nil {
		t.Fatal(err)
	}

	run := mixedRun()
	run.Estimators = run.Estimators[:2] // classification estimators gone
	dir := fixture.Write(t, t.TempDir(), run)

	if _, err := predict(t, dir, trained, false); !errors.Is(err, poolerrors.ErrSchemaMismatch) {
		t.Errorf("expected schema mismatch, got %v", err)
	}
}

func TestPredictor_LayoutChange(t *testing.T) {
	trained := fixture.Write(t, t.TempDir(), mixedRun())
	if _, err := fit(t, trained); err != nil {
		t.Fatal(err)
	}

	run := mixedRun()
	run.Estimators = append(run.Estimators[:1], run.Estimators[2:]...) // one regression estimator
	dir := fixture.Write(t, t.TempDir(), run)

	if _, err := predict(t, dir, trained, false); err != nil {
		t.Errorf("lenient predict failed: %v", err)
	}
	if _, err := predict(t, dir, trained, true); !errors.Is(err, poolerrors.ErrSchemaMismatch) {
		t.Errorf("expected schema mismatch in strict mode, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]string{"m1-reg_y-reg_y", "m2-reg_y-reg_y"})
	if a != Fingerprint([]string{"m1-reg_y-reg_y", "m2-reg_y-reg_y"}) {
		t.Error("fingerprint is not stable")
	}
	if a == Fingerprint([]string{"m2-reg_y-reg_y", "m1-reg_y-reg_y"}) {
		t.Error("fingerprint ignores order")
	}
	if Fingerprint([]string{"ab", "c"}) == Fingerprint([]string{"a", "bc"}) {
		t.Error("fingerprint ignores name boundaries")
	}
	if len(a) != 32 {
		t.Errorf("len = %d, want 32", len(a))
	}
}

func TestRunContext_Timer(t *testing.T) {
	rc := NewRunContext(t.TempDir(), "", nil)
	if rc.RunID == "" {
		t.Fatal("expected run id")
	}
	if other := NewRunContext("", "", nil); other.RunID == rc.RunID {
		t.Error("run ids must be unique")
	}

	rc.StartTimer()
	time.Sleep(5 * time.Millisecond)
	d := rc.StopTimer()
	if d < 5*time.Millisecond {
		t.Errorf("elapsed = %v", d)
	}
	if rc.Elapsed() != d {
		t.Error("Elapsed should be frozen after StopTimer")
	}
}
