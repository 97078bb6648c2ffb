// Package observability exports the metrics of one pooling run, either as a
// node-exporter textfile or by pushing them to a Pushgateway.
package observability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "molpool"

// RunMetrics holds the gauges of a single run on a private registry.
type RunMetrics struct {
	registry *prometheus.Registry
	mode     string

	duration         prometheus.Gauge
	compounds        prometheus.Gauge
	estimatorColumns prometheus.Gauge
	activeTasks      *prometheus.GaugeVec
	evaluation       *prometheus.GaugeVec
	lastSuccess      prometheus.Gauge
	failures         *prometheus.CounterVec
}

// NewRunMetrics creates the metrics for a run in the given mode.
func NewRunMetrics(mode string) *RunMetrics {
	labels := prometheus.Labels{"mode": mode}
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		mode:     mode,

		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_duration_seconds",
			Help:        "Wall time of the pooling stage",
			ConstLabels: labels,
		}),
		compounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "compounds",
			Help:        "Compounds in the consensus output",
			ConstLabels: labels,
		}),
		estimatorColumns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "estimator_columns",
			Help:        "Estimator score columns pooled",
			ConstLabels: labels,
		}),
		activeTasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "active_tasks",
			Help:        "Tasks pooled per kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		evaluation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "evaluation_score",
			Help:        "Headline performance metrics of the consensus",
			ConstLabels: labels,
		}, []string{"task", "metric"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_success_timestamp_seconds",
			Help:        "Completion time of the last successful run",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "run_failures_total",
			Help:        "Failed runs by error category",
			ConstLabels: labels,
		}, []string{"category"}),
	}

	m.registry.MustRegister(
		m.duration,
		m.compounds,
		m.estimatorColumns,
		m.activeTasks,
		m.evaluation,
		m.lastSuccess,
		m.failures,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePool records the outcome of a fit or predict stage.
func (m *RunMetrics) ObservePool(elapsed time.Duration, compounds, estimatorColumns int) {
	m.duration.Set(elapsed.Seconds())
	m.compounds.Set(float64(compounds))
	m.estimatorColumns.Set(float64(estimatorColumns))
}

// SetActiveTasks records how many tasks of kind were pooled.
func (m *RunMetrics) SetActiveTasks(kind string, n int) {
	m.activeTasks.WithLabelValues(kind).Set(float64(n))
}

// SetEvaluation records one evaluation metric.
func (m *RunMetrics) SetEvaluation(task, metric string, v float64) {
	m.evaluation.WithLabelValues(task, metric).Set(v)
}

// MarkSuccess stamps the completion time.
func (m *RunMetrics) MarkSuccess(now time.Time) {
	m.lastSuccess.Set(float64(now.Unix()))
}

// MarkFailure counts a failed run.
func (m *RunMetrics) MarkFailure(category string) {
	if category == "" {
		category = "UNKNOWN"
	}
	m.failures.WithLabelValues(category).Inc()
}

// WriteTextfile writes the metrics in text exposition format to path.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("observability: create directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("observability: write %s: %w", path, err)
	}
	return nil
}

// Push sends the metrics to a Pushgateway, grouped by run id.
func (m *RunMetrics) Push(ctx context.Context, url, job, runID string) error {
	err := push.New(url, job).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("observability: push to %s: %w", url, err)
	}
	return nil
}
