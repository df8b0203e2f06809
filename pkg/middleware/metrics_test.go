package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// consoleRouter mirrors the shape of the console routes so metrics are
// labelled by pattern rather than by raw path.
func consoleRouter(service string, inside func()) *chi.Mux {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/session", func(w http.ResponseWriter, _ *http.Request) {
		if inside != nil {
			inside()
		}
		_, _ = w.Write([]byte(`{"state":"authenticated"}`))
	})
	r.Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
	})
	r.Post("/visits/{kind}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/agent", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return r
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	m, ok := o.(prometheus.Metric)
	require.True(t, ok)
	var d dto.Metric
	require.NoError(t, m.Write(&d))
	return d.GetHistogram().GetSampleCount()
}

func TestPrometheusMetrics_LabelsByRoutePattern(t *testing.T) {
	const svc = "metrics-pattern"
	h := consoleRouter(svc, nil)

	requests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/session", http.StatusOK},
		{http.MethodGet, "/session", http.StatusOK},
		{http.MethodGet, "/admin", http.StatusSeeOther},
		{http.MethodPost, "/visits/customer", http.StatusCreated},
		{http.MethodPost, "/visits/individual", http.StatusCreated},
		{http.MethodGet, "/agent", http.StatusServiceUnavailable},
	}
	for _, r := range requests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
		require.Equal(t, r.want, rec.Code, r.path)
	}

	tests := []struct {
		method, pattern, status string
		want                    float64
	}{
		{"GET", "/session", "200", 2},
		{"GET", "/admin", "303", 1},
		{"POST", "/visits/{kind}", "201", 2},
		{"GET", "/agent", "503", 1},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(svc, tt.method, tt.pattern, tt.status))
		assert.Equal(t, tt.want, got, tt.pattern)
	}

	assert.Equal(t, uint64(2), histogramCount(t, httpRequestDuration.WithLabelValues(svc, "POST", "/visits/{kind}", "201")))
}

func TestPrometheusMetrics_InFlight(t *testing.T) {
	const svc = "metrics-inflight"
	var during float64
	h := consoleRouter(svc, func() {
		during = testutil.ToFloat64(httpRequestsInFlight.WithLabelValues(svc))
	})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/session", nil))

	assert.Equal(t, float64(1), during)
	assert.Equal(t, float64(0), testutil.ToFloat64(httpRequestsInFlight.WithLabelValues(svc)))
}

func TestPrometheusMetrics_UnroutedPath(t *testing.T) {
	const svc = "metrics-unrouted"
	h := PrometheusMetrics(svc)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues(svc, "GET", "unknown", "404")))
}
