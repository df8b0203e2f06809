package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/fieldsales/internal/domain"
	"github.com/utafrali/fieldsales/internal/guard"
	"github.com/utafrali/fieldsales/pkg/health"
	"github.com/utafrali/fieldsales/pkg/middleware"
)

const serviceName = "console"

// RouterConfig tunes the console routes.
type RouterConfig struct {
	LoginRPS            float64
	LoginBurst          int
	SubmitSafetyTimeout time.Duration
}

// NewRouter creates a chi router with every console route registered.
// ctx bounds background work owned by the router, such as rate limiter
// cleanup.
func NewRouter(
	ctx context.Context,
	sessions SessionService,
	submitter VisitSubmitter,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Authenticated(CurrentIdentity(sessions)))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	sessionHandler := NewSessionHandler(sessions, logger)
	visitHandler := NewVisitHandler(sessions, submitter, cfg.SubmitSafetyTimeout, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)

		r.With(RateLimit(ctx, cfg.LoginRPS, cfg.LoginBurst, logger)).Post("/login", sessionHandler.Login)
		r.Post("/logout", sessionHandler.Logout)
		r.Get("/session", sessionHandler.Current)

		r.With(RequireRoles(sessions)).Get("/dashboard", sessionHandler.Dashboard)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRoles(sessions, domain.RoleAdmin))
			r.Get("/", sessionHandler.Landing(guard.LandingPage(domain.RoleAdmin)))
		})
		r.Route("/manager", func(r chi.Router) {
			r.Use(RequireRoles(sessions, domain.RoleManager))
			r.Get("/", sessionHandler.Landing(guard.LandingPage(domain.RoleManager)))
		})
		r.Route("/agent", func(r chi.Router) {
			r.Use(RequireRoles(sessions, domain.RoleAgent))
			r.Get("/", sessionHandler.Landing(guard.LandingPage(domain.RoleAgent)))
			r.Post("/visits", visitHandler.Create)
		})
	})

	return r
}
