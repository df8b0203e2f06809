package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/fieldsales/pkg/logger"
)

func testCBConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      time.Second,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func newTestBreaker(cfg CircuitBreakerConfig) *CircuitBreakerClient {
	client := New(Config{Timeout: 5 * time.Second, MaxRetries: 0, MaxConnsPerHost: 10})
	return NewCircuitBreakerClient(client, cfg, logger.Discard())
}

func get(t *testing.T, ctx context.Context, cb *CircuitBreakerClient, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	resp, err := cb.Do(ctx, req)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, err
}

func statusServer(t *testing.T, status *atomic.Int32, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"detail":"backend says no"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCircuitBreaker_ClosedState_Success(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := statusServer(t, &status, nil)
	cb := newTestBreaker(testCBConfig("test-closed"))

	resp, err := get(t, context.Background(), cb, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.NoError(t, cb.Checker()(context.Background()))
}

func TestCircuitBreaker_5xxTripsAndRejects(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusBadGateway)
	srv := statusServer(t, &status, &hits)
	cb := newTestBreaker(testCBConfig("test-trip"))

	for range 3 {
		_, err := get(t, context.Background(), cb, srv.URL)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.Status)
		assert.Equal(t, "backend says no", ErrorMessage(statusErr.Body))
		assert.False(t, Rejected(err))
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Error(t, cb.Checker()(context.Background()))

	before := hits.Load()
	for range 5 {
		_, err := get(t, context.Background(), cb, srv.URL)
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.True(t, Rejected(err))
	}
	assert.Equal(t, before, hits.Load(), "open breaker must not reach the backend")
}

func TestCircuitBreaker_RejectedCredentialsDoNotTrip(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusUnprocessableEntity, http.StatusBadRequest} {
		var status atomic.Int32
		status.Store(int32(code))
		srv := statusServer(t, &status, nil)
		cb := newTestBreaker(testCBConfig("test-4xx"))

		for range 5 {
			resp, err := get(t, context.Background(), cb, srv.URL)
			require.NoError(t, err)
			assert.Equal(t, code, resp.StatusCode)
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State(), "status %d", code)
	}
}

func TestCircuitBreaker_CanceledRequestsDoNotTrip(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := statusServer(t, &status, nil)
	cfg := testCBConfig("test-canceled")
	cfg.MinRequests = 2
	cb := newTestBreaker(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 4 {
		_, err := get(t, ctx, cb, srv.URL)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	srv := statusServer(t, &status, nil)
	cfg := testCBConfig("test-recovery")
	cfg.Timeout = 100 * time.Millisecond
	cb := newTestBreaker(cfg)

	for range 3 {
		_, _ = get(t, context.Background(), cb, srv.URL)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(150 * time.Millisecond)
	status.Store(http.StatusOK)

	resp, err := get(t, context.Background(), cb, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_DefaultConfig(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("backend-api")
	assert.Equal(t, "backend-api", cfg.Name)
	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, 60*time.Second, cfg.Interval)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 0.5, cfg.FailureRatio)
	assert.Equal(t, uint32(5), cfg.MinRequests)
}

func TestRejected(t *testing.T) {
	assert.True(t, Rejected(gobreaker.ErrOpenState))
	assert.True(t, Rejected(gobreaker.ErrTooManyRequests))
	assert.False(t, Rejected(context.DeadlineExceeded))
	assert.False(t, Rejected(nil))
}
