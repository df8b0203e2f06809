package middleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type contextKeyType string

const (
	userIDKey contextKeyType = "user_id"
	roleKey   contextKeyType = "role"
)

// Identity describes who the console is currently acting as.
type Identity struct {
	UserID int64
	Role   string
}

// IdentityFunc reports the current identity, or false when nobody is
// signed in.
type IdentityFunc func(ctx context.Context) (Identity, bool)

// Authenticated injects the current identity into the request context when
// one exists. It never rejects a request; access decisions belong to the
// route guard.
func Authenticated(current IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := current(r.Context()); ok {
				ctx := context.WithValue(r.Context(), userIDKey, id.UserID)
				ctx = context.WithValue(ctx, roleKey, id.Role)
				trace.SpanFromContext(ctx).SetAttributes(
					attribute.Int64("enduser.id", id.UserID),
					attribute.String("enduser.role", id.Role),
				)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// RoleFromContext extracts the user role from the request context.
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}
