// Package telemetry exposes Prometheus metrics for notification processing.
// Each Metrics owns its registry so tests and embedded servers never share
// global state.
package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultInvalid = "invalid"
	ResultSkipped = "skipped"
)

// Metrics holds the termsearch collectors.
type Metrics struct {
	registry *prometheus.Registry

	NotificationsTotal *prometheus.CounterVec
	DispatchTotal      *prometheus.CounterVec
	DispatchDuration   *prometheus.HistogramVec
	ProcessDuration    prometheus.Histogram
	LockWait           prometheus.Histogram
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates a Metrics with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newWithRegistry(reg)
}

func newWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{registry: reg}

	m.NotificationsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "termsearch_notifications_total",
			Help: "Notifications processed, by event type and result",
		},
		[]string{"event", "result"},
	)

	m.DispatchTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "termsearch_graph_dispatch_total",
			Help: "Per-graph indexer calls, by operation and result",
		},
		[]string{"operation", "result"},
	)

	m.DispatchDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "termsearch_graph_dispatch_duration_seconds",
			Help:    "Duration of per-graph indexer calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	m.ProcessDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "termsearch_process_duration_seconds",
			Help:    "Time spent processing one notification while holding the lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.LockWait = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "termsearch_lock_wait_seconds",
			Help:    "Time a notification waited for the processing lock",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
	)

	m.HTTPRequestsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "termsearch_http_requests_total",
			Help: "HTTP requests, by method, route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "termsearch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterIndexSize exposes termsearch_indexed_documents, read from fn at
// scrape time.
func (m *Metrics) RegisterIndexSize(fn func() float64) error {
	g := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "termsearch_indexed_documents",
			Help: "Documents currently in the node index",
		},
		fn,
	)
	if err := m.registry.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}

// ObserveNotification records one Process call.
func (m *Metrics) ObserveNotification(event string, err error, elapsed time.Duration) {
	m.NotificationsTotal.WithLabelValues(event, resultOf(err)).Inc()
	m.ProcessDuration.Observe(elapsed.Seconds())
}

// ObserveLockWait records how long a Process call waited for the lock.
func (m *Metrics) ObserveLockWait(wait time.Duration) {
	m.LockWait.Observe(wait.Seconds())
}

// ObserveDispatch records one indexer call. Implements indexer.DispatchRecorder.
func (m *Metrics) ObserveDispatch(operation string, err error, elapsed time.Duration) {
	m.DispatchTotal.WithLabelValues(operation, resultOf(err)).Inc()
	m.DispatchDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordHTTPRequest records an HTTP request with its duration.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case termerrors.GetCategory(err) == termerrors.CategoryValidation:
		return ResultInvalid
	default:
		return ResultError
	}
}
