package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	apperrors "github.com/utafrali/fieldsales/pkg/errors"
	"github.com/utafrali/fieldsales/pkg/httputil"
)

// Recovery turns a handler panic into a logged 500. When the handler had
// already started its response only the log line is written.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", v),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("response_started", sw.wroteHeader),
					slog.String("stack", string(debug.Stack())),
				)
				if sw.wroteHeader {
					return
				}
				appErr := apperrors.Internal(fmt.Errorf("panic: %v", v))
				httputil.WriteJSON(sw, appErr.Status, httputil.Response{
					Error: &httputil.ErrorResponse{Code: appErr.Code, Message: appErr.Message},
				})
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
