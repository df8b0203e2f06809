package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/fieldsales/internal/domain"
	"github.com/utafrali/fieldsales/internal/guard"
	"github.com/utafrali/fieldsales/internal/session"
	"github.com/utafrali/fieldsales/pkg/httputil"
	"github.com/utafrali/fieldsales/pkg/logger"
	"github.com/utafrali/fieldsales/pkg/middleware"
	"github.com/utafrali/fieldsales/pkg/validator"
)

// SessionService is the session surface the console drives.
type SessionService interface {
	Snapshot() session.Snapshot
	Login(ctx context.Context, phone, password string) (*domain.User, error)
	Logout(ctx context.Context)
}

// SessionHandler handles login, logout and session inspection.
type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// LoginRequest is the JSON body of POST /login.
type LoginRequest struct {
	Phone    string `json:"phone" validate:"required,phone"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	User    *domain.User `json:"user,omitempty"`
	Landing string       `json:"landing"`
}

// Login handles POST /login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)

	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.sessions.Login(r.Context(), req.Phone, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := LoginResponse{User: user, Landing: guard.PathUnauthorized}
	if user != nil {
		resp.Landing = guard.LandingPage(user.Role)
	}
	httputil.WriteData(w, http.StatusOK, resp)
}

// Logout handles POST /logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	logger.FromContext(r.Context()).InfoContext(r.Context(), "console logout")
	httputil.Redirect(w, guard.PathLogin)
}

// Current handles GET /session
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.sessions.Snapshot())
}

// Dashboard handles GET /dashboard by sending the user to their role's
// landing page.
func (h *SessionHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	httputil.Redirect(w, guard.LandingPage(h.sessions.Snapshot().Role()))
}

// LandingResponse describes a role's home screen.
type LandingResponse struct {
	Screen string       `json:"screen"`
	User   *domain.User `json:"user,omitempty"`
}

// Landing returns a handler for a role's home screen.
func (h *SessionHandler) Landing(screen string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteData(w, http.StatusOK, LandingResponse{
			Screen: screen,
			User:   h.sessions.Snapshot().User,
		})
	}
}

// CurrentIdentity adapts the session for the request identity middleware.
func CurrentIdentity(sessions SessionService) middleware.IdentityFunc {
	return func(context.Context) (middleware.Identity, bool) {
		snap := sessions.Snapshot()
		if !snap.IsAuthenticated || snap.User == nil {
			return middleware.Identity{}, false
		}
		return middleware.Identity{UserID: snap.User.ID, Role: snap.User.Role.String()}, true
	}
}
