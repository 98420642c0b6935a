package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/swim-scheduler-api/internal/models"
)

// Pool selection modes used as metric labels.
const (
	selectionAuto   = "auto"
	selectionManual = "manual"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	backendDuration   *prometheus.HistogramVec
	dbQueryDuration   *prometheus.HistogramVec
	wizardTransitions *prometheus.CounterVec
	wizardsOpened     prometheus.Counter
	poolSelections    *prometheus.CounterVec
	commits           *prometheus.CounterVec
	committedSessions prometheus.Counter

	requestCount         uint64
	requestDurationTotal uint64
	backendCount         uint64
	backendErrorCount    uint64
	backendDurationTotal uint64
	wizardOpenCount      uint64
	commitCount          uint64
	autoSelectionCount   uint64
	manualSelectionCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	backendDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduling_backend_request_duration_seconds",
		Help:    "Duration of calls to the scheduling backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	wizardTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_wizard_transitions_total",
		Help: "Wizard step transitions",
	}, []string{"from", "to"})

	wizardsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_wizards_opened_total",
		Help: "Total wizards opened",
	})

	poolSelections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_pool_selections_total",
		Help: "Pool selections by mode",
	}, []string{"mode"})

	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_wizard_commits_total",
		Help: "Wizard commit attempts by outcome",
	}, []string{"outcome"})

	committedSessions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_committed_sessions_total",
		Help: "Sessions handed to the scheduling backend",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, backendDuration, dbQueryDuration, wizardTransitions, wizardsOpened, poolSelections, commits, committedSessions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		backendDuration:   backendDuration,
		dbQueryDuration:   dbQueryDuration,
		wizardTransitions: wizardTransitions,
		wizardsOpened:     wizardsOpened,
		poolSelections:    poolSelections,
		commits:           commits,
		committedSessions: committedSessions,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveBackendCall records one outbound call to the scheduling backend.
func (m *MetricsService) ObserveBackendCall(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.backendDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.backendCount, 1)
	atomic.AddUint64(&m.backendDurationTotal, uint64(duration.Nanoseconds()))
	if outcome != "ok" {
		atomic.AddUint64(&m.backendErrorCount, 1)
	}
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordWizardOpened counts a new wizard.
func (m *MetricsService) RecordWizardOpened() {
	if m == nil {
		return
	}
	m.wizardsOpened.Inc()
	atomic.AddUint64(&m.wizardOpenCount, 1)
}

// RecordWizardTransition counts a step change.
func (m *MetricsService) RecordWizardTransition(from, to models.WizardStep) {
	if m == nil {
		return
	}
	m.wizardTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordPoolSelections counts pool choices made automatically or by an operator.
func (m *MetricsService) RecordPoolSelections(mode string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.poolSelections.WithLabelValues(mode).Add(float64(count))
	switch mode {
	case selectionAuto:
		atomic.AddUint64(&m.autoSelectionCount, uint64(count))
	case selectionManual:
		atomic.AddUint64(&m.manualSelectionCount, uint64(count))
	}
}

// RecordCommit counts a commit attempt and, on success, its sessions.
func (m *MetricsService) RecordCommit(success bool, sessions int) {
	if m == nil {
		return
	}
	if !success {
		m.commits.WithLabelValues("error").Inc()
		return
	}
	m.commits.WithLabelValues("ok").Inc()
	m.committedSessions.Add(float64(sessions))
	atomic.AddUint64(&m.commitCount, 1)
}

// Snapshot returns aggregated metrics suitable for the summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	backendCalls := atomic.LoadUint64(&m.backendCount)
	backendDuration := atomic.LoadUint64(&m.backendDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgBackendMs float64
	if backendCalls > 0 {
		avgBackendMs = float64(backendDuration) / float64(backendCalls) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		BackendCalls:             backendCalls,
		BackendErrors:            atomic.LoadUint64(&m.backendErrorCount),
		AverageBackendDurationMs: avgBackendMs,
		WizardsOpened:            atomic.LoadUint64(&m.wizardOpenCount),
		Commits:                  atomic.LoadUint64(&m.commitCount),
		AutoSelections:           atomic.LoadUint64(&m.autoSelectionCount),
		ManualSelections:         atomic.LoadUint64(&m.manualSelectionCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
