// Package metrics provides Prometheus metrics for the squad optimiser.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the optimiser's collectors. All methods are safe on a nil
// receiver so callers can run without metrics.
type Manager struct {
	namespace    string
	subsystem    string
	solveBuckets []float64
	registry     *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runErrors        *prometheus.CounterVec
	solveDuration    *prometheus.HistogramVec
	nodesExplored    prometheus.Histogram
	rosterMetric     *prometheus.GaugeVec
	poolSize         prometheus.Gauge
	poolRefreshes    *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	fetchRequests    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpRequestDelay *prometheus.HistogramVec
}

var defaultManager = NewManager() //nolint:gochecknoglobals // process-wide metrics

// Default returns the process-wide manager.
func Default() *Manager {
	return defaultManager
}

// NewManager creates a manager registered on its own registry, so Go runtime
// metrics stay out of the exposition unless asked for.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:    "ffepl",
		subsystem:    "optimiser",
		solveBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		registry:     prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Optimisation runs by metric and solver status",
	}, []string{"metric", "status"})

	m.runErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_errors_total",
		Help:      "Optimisation runs that ended in an error, by error kind",
	}, []string{"kind"})

	m.solveDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "solve_duration_seconds",
		Help:      "Time spent inside the solver backend",
		Buckets:   m.solveBuckets,
	}, []string{"solver"})

	m.nodesExplored = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "nodes_explored",
		Help:      "Branch and bound nodes explored per solve",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	m.rosterMetric = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_roster_total",
		Help:      "Objective total of the last feasible roster per metric",
	}, []string{"metric"})

	m.poolSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "pool",
		Name:      "players",
		Help:      "Players in the current pool snapshot",
	})

	m.poolRefreshes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "pool",
		Name:      "refreshes_total",
		Help:      "Pool refresh attempts by result",
	}, []string{"result"})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Roster cache lookups by result",
	}, []string{"result"})

	m.fetchRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "fpl",
		Name:      "requests_total",
		Help:      "FPL API requests by endpoint and result",
	}, []string{"endpoint", "result"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})

	m.httpRequestDelay = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
}

// RecordRun counts a finished run.
func (m *Manager) RecordRun(metric, status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(metric, status).Inc()
}

// RecordRunError counts a run that failed with the given error kind.
func (m *Manager) RecordRunError(kind string) {
	if m == nil {
		return
	}
	m.runErrors.WithLabelValues(kind).Inc()
}

// RecordSolve observes solver time and explored nodes.
func (m *Manager) RecordSolve(solverName string, seconds float64, nodes int) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(solverName).Observe(seconds)
	m.nodesExplored.Observe(float64(nodes))
}

// SetRosterTotal records the objective of the last feasible roster.
func (m *Manager) SetRosterTotal(metric string, total float64) {
	if m == nil {
		return
	}
	m.rosterMetric.WithLabelValues(metric).Set(total)
}

// SetPoolSize records the size of the active pool.
func (m *Manager) SetPoolSize(n int) {
	if m == nil {
		return
	}
	m.poolSize.Set(float64(n))
}

// RecordPoolRefresh counts a scheduled pool refresh ("ok" or "error").
func (m *Manager) RecordPoolRefresh(result string) {
	if m == nil {
		return
	}
	m.poolRefreshes.WithLabelValues(result).Inc()
}

// RecordCacheLookup counts a cache "hit", "miss" or "error".
func (m *Manager) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordFetch counts an FPL API request.
func (m *Manager) RecordFetch(endpoint, result string) {
	if m == nil {
		return
	}
	m.fetchRequests.WithLabelValues(endpoint, result).Inc()
}

// RecordHTTPRequest counts and times an HTTP request.
func (m *Manager) RecordHTTPRequest(route, method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpRequestDelay.WithLabelValues(route, method).Observe(seconds)
}

// Registry exposes the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
