// Package observability exposes Prometheus metrics and health endpoints
// for the lesson engine.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Generation pipeline metrics
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studytree_generations_total",
			Help: "Total number of generation pipeline invocations",
		},
		[]string{"status"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studytree_generation_duration_seconds",
			Help:    "Generation invocation duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	// Assessment metrics
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studytree_evaluations_total",
			Help: "Total number of answer evaluations",
		},
		[]string{"result"},
	)

	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studytree_analyses_total",
			Help: "Total number of question complexity analyses",
		},
		[]string{"status"},
	)

	// Tree metrics
	branchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studytree_branches_total",
			Help: "Total number of branches committed to the lesson tree",
		},
		[]string{"kind"},
	)

	sessionNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "studytree_session_nodes",
			Help: "Number of nodes in the active session tree",
		},
	)

	// Persistence metrics
	persistenceFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studytree_persistence_failures_total",
			Help: "Total number of swallowed session persistence failures",
		},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			generationsTotal,
			generationDuration,
			evaluationsTotal,
			analysesTotal,
			branchesTotal,
			sessionNodes,
			persistenceFailuresTotal,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ObserveGeneration records one generation pipeline invocation
func ObserveGeneration(status string, duration time.Duration) {
	generationsTotal.WithLabelValues(status).Inc()
	generationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveEvaluation records one answer evaluation outcome
func ObserveEvaluation(result string) {
	evaluationsTotal.WithLabelValues(result).Inc()
}

// ObserveAnalysis records one question complexity analysis
func ObserveAnalysis(status string) {
	analysesTotal.WithLabelValues(status).Inc()
}

// RecordBranch records a branch committed to the tree
func RecordBranch(kind string) {
	branchesTotal.WithLabelValues(kind).Inc()
}

// SetSessionNodes sets the active session tree size gauge
func SetSessionNodes(count int) {
	sessionNodes.Set(float64(count))
}

// RecordPersistenceFailure records a swallowed persistence failure
func RecordPersistenceFailure() {
	persistenceFailuresTotal.Inc()
}
