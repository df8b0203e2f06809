package http

import (
	"net/http"
	"strconv"

	"github.com/utafrali/fieldsales/internal/domain"
	"github.com/utafrali/fieldsales/internal/guard"
	"github.com/utafrali/fieldsales/internal/session"
	"github.com/utafrali/fieldsales/pkg/httputil"
)

// loadingRetryAfter is sent while the session is still initializing.
const loadingRetryAfter = 1

// guardInput maps a session snapshot onto the guard's input.
func guardInput(snap session.Snapshot) guard.Input {
	return guard.Input{
		Loading:         snap.IsLoading,
		IsAuthenticated: snap.IsAuthenticated,
		HasToken:        snap.Token != "",
		Role:            snap.Role(),
	}
}

// RequireRoles applies the route guard in front of next. Redirects become
// 303 See Other; a session still initializing gets 503 with Retry-After.
func RequireRoles(sessions SessionService, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := guard.Decide(guardInput(sessions.Snapshot()), roles...)
			switch {
			case d.Kind == guard.Redirect:
				httputil.Redirect(w, d.Location)
			case d.Content == guard.Loading:
				w.Header().Set("Retry-After", strconv.Itoa(loadingRetryAfter))
				httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "SESSION_LOADING", Message: "session is still initializing"},
				})
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
