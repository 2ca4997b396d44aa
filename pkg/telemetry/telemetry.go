// Package telemetry provides the Prometheus metrics of a cvtune run.
//
// cvtune runs as a batch job, so metrics live on a private registry and are
// exported once per run with WriteTextfile for the node-exporter textfile
// collector, or gathered directly in tests.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shrubheight/cvtune/pkg/errors"
)

// Metrics holds all Prometheus metrics of a run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FoldsCompleted     *prometheus.CounterVec   // Folds finished, by model
	FoldDuration       *prometheus.HistogramVec // Wall time of one fold, by model
	SearchCandidates   *prometheus.CounterVec   // Search configurations evaluated, by model
	ImportanceFailures *prometheus.CounterVec   // Folds whose permutation importance was replaced by zeros
	RunDuration        *prometheus.GaugeVec     // Wall time of the last run, by model and method
	RunScore           *prometheus.GaugeVec     // Statistics of the last run, by model and statistic
}

// New creates metrics on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates and registers the metrics on registry.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		FoldsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cvtune_folds_completed_total",
			Help: "Total number of cross-validation folds completed",
		}, []string{"model"}),
		FoldDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cvtune_fold_duration_seconds",
			Help:    "Wall time of one cross-validation fold in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"model"}),
		SearchCandidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cvtune_search_candidates_total",
			Help: "Total number of hyperparameter configurations evaluated",
		}, []string{"model"}),
		ImportanceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cvtune_importance_failures_total",
			Help: "Folds whose permutation importance could not be computed",
		}, []string{"model"}),
		RunDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cvtune_run_duration_seconds",
			Help: "Wall time of the last run in seconds",
		}, []string{"model", "method"}),
		RunScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cvtune_run_score",
			Help: "Agreement statistics of the last run",
		}, []string{"model", "stat"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FoldDone records one finished fold.
func (m *Metrics) FoldDone(model string, seconds float64) {
	if m == nil {
		return
	}
	m.FoldsCompleted.WithLabelValues(model).Inc()
	m.FoldDuration.WithLabelValues(model).Observe(seconds)
}

// CandidateDone records one evaluated search configuration.
func (m *Metrics) CandidateDone(model string) {
	if m == nil {
		return
	}
	m.SearchCandidates.WithLabelValues(model).Inc()
}

// ImportanceFailed records a fold whose importances were replaced by zeros.
func (m *Metrics) ImportanceFailed(model string) {
	if m == nil {
		return
	}
	m.ImportanceFailures.WithLabelValues(model).Inc()
}

// RunDone records the duration and statistics of a finished run.
func (m *Metrics) RunDone(model, method string, seconds float64, scores map[string]float64) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(model, method).Set(seconds)
	for stat, v := range scores {
		m.RunScore.WithLabelValues(model, stat).Set(v)
	}
}

// WriteTextfile writes all metrics in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrap(err, "write metrics textfile")
	}
	return nil
}
