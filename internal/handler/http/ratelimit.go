package http

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/utafrali/fieldsales/pkg/errors"
	"github.com/utafrali/fieldsales/pkg/httputil"
)

// loginThrottle holds one token bucket per client address. Buckets that
// have been full and untouched for idleAfter are dropped by sweep.
type loginThrottle struct {
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newLoginThrottle(rps float64, burst int, idleAfter time.Duration) *loginThrottle {
	return &loginThrottle{
		limit:     rate.Limit(rps),
		burst:     burst,
		idleAfter: idleAfter,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// wait reports how long addr must wait before its next attempt; zero
// means the attempt is allowed and a token was taken.
func (t *loginThrottle) wait(addr string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	b := t.buckets[addr]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[addr] = b
	}
	b.seen = now

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return t.idleAfter
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return d
	}
	return 0
}

func (t *loginThrottle) sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.idleAfter)
	for addr, b := range t.buckets {
		if b.seen.Before(cutoff) {
			delete(t.buckets, addr)
		}
	}
	return len(t.buckets)
}

func (t *loginThrottle) run(ctx context.Context) {
	tick := time.NewTicker(t.idleAfter)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.sweep()
		}
	}
}

// RateLimit throttles console sign-in attempts per client address. A
// throttled attempt gets 429 with Retry-After set to the whole seconds
// until the next token. Idle buckets are swept until ctx is done.
func RateLimit(ctx context.Context, rps float64, burst int, logger *slog.Logger) func(http.Handler) http.Handler {
	throttle := newLoginThrottle(rps, burst, 3*time.Minute)
	go throttle.run(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientIP(r)
			if d := throttle.wait(addr); d > 0 {
				secs := int(math.Ceil(d.Seconds()))
				logger.WarnContext(r.Context(), "login throttled",
					slog.String("client", addr),
					slog.Int("retry_after_s", secs),
				)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httputil.WriteError(w, r, apperrors.TooManyRequests("too many login attempts"), logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// the host of the connection.
func clientIP(r *http.Request) string {
	for _, h := range []string{"X-Forwarded-For", "X-Real-IP"} {
		first, _, _ := strings.Cut(r.Header.Get(h), ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
