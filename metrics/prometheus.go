// Package metrics provides Prometheus metrics for the payroll engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/payroll-engine/payroll"
)

// Manager owns the payroll metrics and their registry. It implements
// payroll.Observer.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         *prometheus.Registry

	// Calculation Metrics
	calculations       *prometheus.CounterVec
	calculationLatency prometheus.Histogram
	holidayFallbacks   prometheus.Counter
	violations         *prometheus.CounterVec
	minimumWageTopUps  prometheus.Counter
	sessionsSkipped    prometheus.Counter

	// Batch Metrics
	batchRuns      prometheus.Counter
	batchEmployees *prometheus.CounterVec
	batchDuration  prometheus.Histogram

	// HTTP Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ payroll.Observer = (*Manager)(nil)

// NewManager creates a manager. Without WithRegistry it registers on a fresh
// registry that also carries the Go and process collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "payroll",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.calculations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calculations_total",
		Help:      "Monthly calculations by outcome status",
	}, []string{"status"})

	m.calculationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calculation_duration_seconds",
		Help:      "Duration of one employee-month calculation",
		Buckets:   m.histogramBuckets,
	})

	m.holidayFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "holiday_lookup_fallbacks_total",
		Help:      "Holiday lookups that failed and fell back to the seasonal estimate",
	})

	m.violations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "legal_violations_total",
		Help:      "Legal violations reported, by code",
	}, []string{"code"})

	m.minimumWageTopUps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "minimum_wage_applied_total",
		Help:      "Monthly results raised to the minimum wage",
	})

	m.sessionsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_skipped_total",
		Help:      "Sessions excluded from aggregation (in progress, invalid, outside the month)",
	})

	m.batchRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "batch",
		Name:      "runs_total",
		Help:      "Batch recalculation runs",
	})

	m.batchEmployees = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "batch",
		Name:      "employees_total",
		Help:      "Employees processed by batch runs, by result",
	}, []string{"result"})

	m.batchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "batch",
		Name:      "duration_seconds",
		Help:      "Duration of a batch run",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by route and method",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// =============================================================================
// payroll.Observer
// =============================================================================

func (m *Manager) CalculationFinished(status payroll.OutcomeStatus, elapsed time.Duration) {
	if !m.enabled {
		return
	}
	m.calculations.WithLabelValues(string(status)).Inc()
	m.calculationLatency.Observe(elapsed.Seconds())
}

func (m *Manager) HolidayFallback() {
	if m.enabled {
		m.holidayFallbacks.Inc()
	}
}

func (m *Manager) ViolationsReported(violations []payroll.LegalViolation) {
	if !m.enabled {
		return
	}
	for _, v := range violations {
		m.violations.WithLabelValues(string(v.Code)).Inc()
	}
}

func (m *Manager) MinimumWageApplied() {
	if m.enabled {
		m.minimumWageTopUps.Inc()
	}
}

func (m *Manager) SessionsSkipped(n int) {
	if m.enabled && n > 0 {
		m.sessionsSkipped.Add(float64(n))
	}
}

// =============================================================================
// BATCH AND HTTP
// =============================================================================

// RecordBatch records one finished batch run.
func (m *Manager) RecordBatch(succeeded, failed int, elapsed time.Duration) {
	if !m.enabled {
		return
	}
	m.batchRuns.Inc()
	m.batchEmployees.WithLabelValues("ok").Add(float64(succeeded))
	m.batchEmployees.WithLabelValues("failed").Add(float64(failed))
	m.batchDuration.Observe(elapsed.Seconds())
}

// RecordHTTPRequest records one served request. route is the matched
// pattern, not the raw path.
func (m *Manager) RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Registry returns the registry metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
