package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New("bin-service")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/poubelles", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/poubelles", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/poubelles", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/poubelles", "500")))
}

func TestObserveStore_SplitsByResult(t *testing.T) {
	m := New("bin-service")

	m.ObserveStore("list", time.Now(), nil)
	m.ObserveStore("list", time.Now(), fmt.Errorf("no such table: poubelles"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.storeDuration))
}

func TestSkippedRows_IgnoresZero(t *testing.T) {
	m := New("bin-service")

	m.SkippedRows("list", 0)
	assert.Equal(t, 0, testutil.CollectAndCount(m.skippedRows))

	m.SkippedRows("list", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skippedRows.WithLabelValues("list")))
}

func TestPollAndSnapshotState(t *testing.T) {
	m := New("dashboard")

	m.Poll(ResultSuccess)
	m.Poll(ResultError)
	m.Poll(ResultError)
	m.SnapshotState(3, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pollsTotal.WithLabelValues(ResultError)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.snapshotSize))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.consecutiveFailures))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := New("bin-service")
	m.BinFull()
	m.LevelReport("applied")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `poubelles_bins_full_total{service="bin-service"} 1`))
	assert.Contains(t, body, `poubelles_level_reports_total{outcome="applied",service="bin-service"} 1`)
}

func TestNilMetrics_IsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Poll(ResultSuccess)
		m.SnapshotState(1, 0)
		m.ObserveStore("list", time.Now(), nil)
		m.LevelReport("applied")
		m.BinFull()
		m.SkippedRows("list", 2)
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rr := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
