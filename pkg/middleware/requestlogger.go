package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/fieldsales/pkg/logger"
)

// RequestLogger returns middleware that builds a request-scoped logger enriched
// with correlation_id, user_id, role, trace_id and span_id, then stores it in
// context via logger.NewContext. Downstream handlers retrieve it with
// logger.FromContext(ctx).
//
// Mount it after RequestLogging, Tracing and Authenticated.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if id, ok := UserIDFromContext(ctx); ok {
				ctx = logger.WithUserID(ctx, id)
			}
			if role := RoleFromContext(ctx); role != "" {
				ctx = logger.WithRole(ctx, role)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
