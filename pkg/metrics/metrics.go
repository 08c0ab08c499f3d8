// Package metrics holds the Prometheus collectors shared by the bin service and the dashboard.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/poubelles/poubelles-backend/pkg/httputil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "poubelles"

// Result labels
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics owns a private registry and the collectors registered on it
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	storeDuration   *prometheus.HistogramVec
	skippedRows     *prometheus.CounterVec
	levelReports    *prometheus.CounterVec
	binsFull        prometheus.Counter

	pollsTotal          *prometheus.CounterVec
	snapshotSize        prometheus.Gauge
	consecutiveFailures prometheus.Gauge
}

// New creates the collectors for service and registers Go/process collectors alongside them
func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "HTTP requests by route and status code.",
			ConstLabels: constLabels,
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency by route.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"route"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "store_query_duration_seconds",
			Help:        "Store query latency by operation and result.",
			ConstLabels: constLabels,
			Buckets:     []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation", "result"}),
		skippedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "store_skipped_rows_total",
			Help:        "Rows left out of a read because they cannot be placed on the map.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		levelReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "level_reports_total",
			Help:        "Fill-level reports consumed, by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		binsFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "bins_full_total",
			Help:        "Transitions of a bin into the critical band.",
			ConstLabels: constLabels,
		}),
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "dashboard_polls_total",
			Help:        "Dashboard poll attempts by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "dashboard_snapshot_bins",
			Help:        "Number of bins in the dashboard's current snapshot.",
			ConstLabels: constLabels,
		}),
		consecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "dashboard_consecutive_poll_failures",
			Help:        "Poll failures since the last successful poll.",
			ConstLabels: constLabels,
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.storeDuration,
		m.skippedRows,
		m.levelReports,
		m.binsFull,
		m.pollsTotal,
		m.snapshotSize,
		m.consecutiveFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Middleware records request counts and latency per chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &httputil.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(rec.Status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveStore records one store round trip
func (m *Metrics) ObserveStore(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(operation, resultOf(err)).Observe(time.Since(started).Seconds())
}

// SkippedRows counts rows a read left out
func (m *Metrics) SkippedRows(operation string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.skippedRows.WithLabelValues(operation).Add(float64(n))
}

// LevelReport counts one consumed fill-level report by outcome
func (m *Metrics) LevelReport(outcome string) {
	if m == nil {
		return
	}
	m.levelReports.WithLabelValues(outcome).Inc()
}

// BinFull counts one transition into the critical band
func (m *Metrics) BinFull() {
	if m == nil {
		return
	}
	m.binsFull.Inc()
}

// Poll records a dashboard poll attempt
func (m *Metrics) Poll(result string) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(result).Inc()
}

// SnapshotState publishes the dashboard's snapshot size and failure streak
func (m *Metrics) SnapshotState(bins, consecutiveFailures int) {
	if m == nil {
		return
	}
	m.snapshotSize.Set(float64(bins))
	m.consecutiveFailures.Set(float64(consecutiveFailures))
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
