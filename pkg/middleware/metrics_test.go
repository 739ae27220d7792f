package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMetrics_CountsByRoutePattern(t *testing.T) {
	const service = "metrics-route-test"

	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/api/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":0}`))
	})
	r.Get("/api/search/suggest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/search?q=algebra", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/search/suggest", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(service, "GET", "/api/search", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(service, "GET", "/api/search/suggest", "400")))
}

func TestPrometheusMetrics_UnmatchedRoute(t *testing.T) {
	const service = "metrics-unmatched-test"

	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/does/not/exist", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(service, "GET", "unmatched", "404")))
}

func TestPrometheusMetrics_InFlightReturnsToZero(t *testing.T) {
	const service = "metrics-inflight-test"

	var during float64
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/api/search", func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(httpRequestsInFlight.WithLabelValues(service))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/search", nil))

	assert.Equal(t, 1.0, during)
	assert.Equal(t, 0.0, testutil.ToFloat64(httpRequestsInFlight.WithLabelValues(service)))
}

func TestStatusRecorder_FirstStatusWins(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	rec.WriteHeader(http.StatusConflict)
	rec.WriteHeader(http.StatusOK)
	_, _ = rec.Write([]byte("busy"))

	assert.Equal(t, http.StatusConflict, rec.status)
	assert.Equal(t, 4, rec.bytes)
	assert.Same(t, rec, newStatusRecorder(rec))
}
