package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Config holds HTTP client configuration
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns sensible defaults for HTTP client
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	}
}

type noRetryKey struct{}

// WithoutRetry marks ctx so that requests executed with it are attempted
// exactly once. Used for non-idempotent uploads.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

func retriesDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noRetryKey{}).(bool)
	return v
}

// Client is an http.Client that retries network errors and 5xx answers
// with jittered exponential backoff.
type Client struct {
	httpClient *http.Client
	config     Config
}

// New creates a Client with its own connection pool.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		config:     cfg,
	}
}

// Do sends req, retrying up to MaxRetries times. It makes a single attempt
// when ctx was marked WithoutRetry or when the body cannot be rewound.
// A 503 carrying Retry-After waits that long, capped at RetryWaitMax.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	retries := c.config.MaxRetries
	if retriesDisabled(ctx) || (req.Body != nil && req.Body != http.NoBody && req.GetBody == nil) {
		retries = 0
	}

	var wait time.Duration
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := c.httpClient.Do(req)
		last := attempt >= retries
		if err != nil {
			if !last && isRetryableError(err) {
				wait = c.backoff(attempt)
				continue
			}
			return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt+1, err)
		}

		if last || resp.StatusCode < 500 || resp.StatusCode == http.StatusNotImplemented {
			return resp, nil
		}
		wait = c.backoff(attempt)
		if d, ok := retryAfter(resp); ok {
			wait = min(d, c.config.RetryWaitMax)
		}
		_ = resp.Body.Close()
	}
}

// backoff is the jittered wait before retry number attempt+1.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.config.RetryWaitMax
	if attempt < 30 {
		if w := c.config.RetryWaitMin << attempt; w > 0 && w < wait {
			wait = w
		}
	}
	return addJitter(wait)
}

// retryAfter reads a delay-seconds Retry-After header from a 503.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// addJitter returns d shifted by a random offset within ±25%.
func addJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := int64(d) / 2
	if spread == 0 {
		return d
	}
	return d - time.Duration(spread/2) + time.Duration(rand.Int64N(spread+1))
}

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
