package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunMetrics_Values(t *testing.T) {
	m := NewRunMetrics("fit")
	m.ObservePool(1500*time.Millisecond, 4, 6)
	m.SetActiveTasks("regression", 2)
	m.SetEvaluation("clf_z", "roc_auc_score", 0.75)
	m.MarkFailure("")

	if got := testutil.ToFloat64(m.duration); got != 1.5 {
		t.Errorf("duration = %v, want 1.5", got)
	}
	if got := testutil.ToFloat64(m.compounds); got != 4 {
		t.Errorf("compounds = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.activeTasks.WithLabelValues("regression")); got != 2 {
		t.Errorf("active tasks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.evaluation.WithLabelValues("clf_z", "roc_auc_score")); got != 0.75 {
		t.Errorf("evaluation = %v, want 0.75", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("UNKNOWN")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
}

func TestRunMetrics_WriteTextfile(t *testing.T) {
	m := NewRunMetrics("predict")
	m.ObservePool(time.Second, 10, 3)

	path := filepath.Join(t.TempDir(), "report", "metrics.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `molpool_compounds{mode="predict"} 10`) {
		t.Errorf("unexpected textfile content:\n%s", raw)
	}
}

func TestRunMetrics_Push(t *testing.T) {
	var hits int32
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewRunMetrics("fit")
	if err := m.Push(context.Background(), srv.URL, "molpool", "run-1"); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected one push, got %d", hits)
	}
	if !strings.Contains(path, "/job/molpool/run_id/run-1") {
		t.Errorf("unexpected push path %s", path)
	}
}
