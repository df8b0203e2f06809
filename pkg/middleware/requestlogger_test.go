package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/fieldsales/pkg/logger"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return logger.NewWithWriter("console", "info", buf)
}

// decodeLines returns every JSON record written to buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		lines = append(lines, m)
	}
	return lines
}

func byMessage(lines []map[string]any, msg string) map[string]any {
	for _, l := range lines {
		if l["msg"] == msg {
			return l
		}
	}
	return nil
}

// consoleChain wires the middleware in the order the console router uses.
func consoleChain(buf *bytes.Buffer, level string, who IdentityFunc) http.Handler {
	base := logger.NewWithWriter("console", level, buf)
	r := chi.NewRouter()
	r.Use(RequestLogging(base))
	r.Use(Tracing("console"))
	r.Use(Authenticated(who))
	r.Use(RequestLogger(base))
	r.Get("/agent", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("rendering screen")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	return r
}

func signedIn(context.Context) (Identity, bool) {
	return Identity{UserID: 7, Role: "MANAGER"}, true
}

func signedOut(context.Context) (Identity, bool) { return Identity{}, false }

func TestRequestLogger_SignedInChain(t *testing.T) {
	setupTestTracer(t)
	var buf bytes.Buffer
	h := consoleChain(&buf, "info", signedIn)

	req := httptest.NewRequest(http.MethodGet, "/agent", nil)
	req.Header.Set(CorrelationHeader, "corr-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "corr-42", rec.Header().Get(CorrelationHeader))

	lines := decodeLines(t, &buf)
	screen := byMessage(lines, "rendering screen")
	require.NotNil(t, screen)
	assert.Equal(t, "corr-42", screen["correlation_id"])
	assert.Equal(t, float64(7), screen["user_id"])
	assert.Equal(t, "MANAGER", screen["role"])
	assert.Len(t, screen["trace_id"], 32)
	assert.Len(t, screen["span_id"], 16)

	access := byMessage(lines, "http request")
	require.NotNil(t, access)
	assert.Equal(t, "/agent", access["path"])
	assert.Equal(t, float64(http.StatusOK), access["status"])
	assert.Equal(t, "INFO", access["level"])
}

func TestRequestLogger_SignedOutOmitsIdentity(t *testing.T) {
	setupTestTracer(t)
	var buf bytes.Buffer
	h := consoleChain(&buf, "info", signedOut)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agent", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))

	screen := byMessage(decodeLines(t, &buf), "rendering screen")
	require.NotNil(t, screen)
	assert.NotContains(t, screen, "user_id")
	assert.NotContains(t, screen, "role")
	assert.Equal(t, rec.Header().Get(CorrelationHeader), screen["correlation_id"])
}

func TestRequestLogging_Levels(t *testing.T) {
	tests := []struct {
		path      string
		level     string
		wantLevel string
		logged    bool
	}{
		{"/health/ready", "info", "", false},
		{"/health/ready", "debug", "DEBUG", true},
		{"/boom", "info", "WARN", true},
	}
	for _, tt := range tests {
		t.Run(tt.path+"@"+tt.level, func(t *testing.T) {
			setupTestTracer(t)
			var buf bytes.Buffer
			consoleChain(&buf, tt.level, signedOut).
				ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			access := byMessage(decodeLines(t, &buf), "http request")
			if !tt.logged {
				assert.Nil(t, access)
				return
			}
			require.NotNil(t, access)
			assert.Equal(t, tt.wantLevel, access["level"])
		})
	}
}

func TestRequestLogger_WithoutUpstreamMiddleware(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogger(newTestLogger(&buf))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.FromContext(r.Context()).Info("plain")
		}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/session", nil))

	line := byMessage(decodeLines(t, &buf), "plain")
	require.NotNil(t, line)
	assert.Equal(t, "console", line["service"])
	for _, k := range []string{"correlation_id", "user_id", "trace_id"} {
		assert.NotContains(t, line, k)
	}
}
