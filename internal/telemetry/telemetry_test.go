package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LabelsByRouteTemplate(t *testing.T) {
	m := New()

	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/api/metrics/{category}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/api/metrics/cpu", "/api/metrics/ram"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/metrics/{category}", "404"))
	assert.Equal(t, 2.0, got, "Both paths share one template label")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveRequests.WithLabelValues("GET", "/api/metrics/{category}")))
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveIngest(3)
	m.ObserveIngest(2)
	m.ObserveIngestFailure("validation")
	m.ObserveRetry(1, errors.New("refused"))

	assert.Equal(t, 5.0, testutil.ToFloat64(m.SamplesIngested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestFailures.WithLabelValues("validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreRetries))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "sysmon_samples_ingested_total 5")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveIngest(1)
		m.ObserveIngestFailure("x")
		m.ObserveRetry(1, nil)
		m.RegisterDB(nil, "x")
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}
