package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
		otel.SetTextMapPropagator(prevProp)
	})

	return exporter
}

func tracedRouter(pattern string, h http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(Tracing("console"))
	r.Get(pattern, h)
	return r
}

func serveOne(t *testing.T, exporter *tracetest.InMemoryExporter, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, tracetest.SpanStub) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	return rec, spans[0]
}

func attrs(span tracetest.SpanStub) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(span.Attributes))
	for _, kv := range span.Attributes {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing_NamesSpanAfterRoute(t *testing.T) {
	exporter := setupTestTracer(t)
	h := tracedRouter("/agent/{screen}", func(w http.ResponseWriter, r *http.Request) {})

	_, span := serveOne(t, exporter, h, httptest.NewRequest(http.MethodGet, "/agent/visits", nil))
	assert.Equal(t, "GET /agent/{screen}", span.Name)
	assert.Equal(t, "/agent/{screen}", attrs(span)["http.route"].AsString())
	assert.Equal(t, int64(http.StatusOK), attrs(span)["http.status_code"].AsInt64())
}

func TestTracing_RecordsGuardRedirect(t *testing.T) {
	exporter := setupTestTracer(t)
	h := tracedRouter("/admin", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
	})

	_, span := serveOne(t, exporter, h, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, "/unauthorized", attrs(span)["console.redirect"].AsString())
	assert.Equal(t, codes.Unset, span.Status.Code)
}

func TestTracing_LoadingIsNotAnError(t *testing.T) {
	exporter := setupTestTracer(t)
	h := tracedRouter("/agent", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, span := serveOne(t, exporter, h, httptest.NewRequest(http.MethodGet, "/agent", nil))
	assert.True(t, attrs(span)["console.session_loading"].AsBool())
	assert.Equal(t, codes.Unset, span.Status.Code)
}

func TestTracing_ServerErrorMarksSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	h := tracedRouter("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, span := serveOne(t, exporter, h, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, codes.Error, span.Status.Code)
}

func TestTracing_JoinsIncomingTrace(t *testing.T) {
	exporter := setupTestTracer(t)
	h := tracedRouter("/session", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec, span := serveOne(t, exporter, h, req)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext.TraceID().String())
	assert.NotEmpty(t, rec.Header().Get("traceparent"))
}
