package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracer_Disabled(t *testing.T) {
	prev := otel.GetTracerProvider()

	shutdown, err := InitTracer(context.Background(), DefaultConfig("fieldsales-test"))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, prev, otel.GetTracerProvider(), "disabled tracing installs nothing")
}

func TestInitTracer_Enabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := DefaultConfig("fieldsales-test")
	cfg.Enabled = true
	// Export is batched, so an unreachable collector does not fail startup.
	cfg.OTLPEndpoint = "127.0.0.1:0"

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("fieldsales")
	assert.Equal(t, "fieldsales", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
	assert.NotEmpty(t, cfg.ServiceVersion)
}

func TestSampler(t *testing.T) {
	remoteParent := trace.ContextWithRemoteSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f},
			SpanID:     trace.SpanID{0x00, 0xf0, 0x67},
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		}))

	tests := []struct {
		name       string
		rate       float64
		ctx        context.Context
		wantSample bool
	}{
		{"always", 1, context.Background(), true},
		{"never", 0, context.Background(), false},
		{"never but parent sampled", 0, remoteParent, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(Config{SampleRate: tt.rate}.Sampler()))
			defer func() { _ = tp.Shutdown(context.Background()) }()

			_, span := tp.Tracer("test").Start(tt.ctx, "session.Init")
			defer span.End()
			assert.Equal(t, tt.wantSample, span.SpanContext().IsSampled())
		})
	}
}

func TestInjectHeaders(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	ctx, span := tp.Tracer("fieldsales/test").Start(context.Background(), "client.Login")
	defer span.End()

	h := http.Header{}
	InjectHeaders(ctx, h)
	assert.NotEmpty(t, h.Get("Traceparent"))
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("fieldsales/test").Start(context.Background(), "visit.Submit")
	RecordError(span, nil)
	RecordError(span, errors.New("upload failed"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Events(), 1)
}
