// Package session owns the authentication state of the process: it
// restores a persisted credential at start, logs in and out, and folds
// background identity refreshes back into the session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/utafrali/fieldsales/internal/auth"
	"github.com/utafrali/fieldsales/internal/client"
	"github.com/utafrali/fieldsales/internal/domain"
	"github.com/utafrali/fieldsales/internal/tokenstore"
	apperrors "github.com/utafrali/fieldsales/pkg/errors"
	"github.com/utafrali/fieldsales/pkg/validator"
)

// Navigation targets.
const (
	PathDashboard = "/dashboard"
	PathLogin     = "/login"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateInitializing State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	State           State        `json:"state"`
	Token           string       `json:"-"`
	User            *domain.User `json:"user,omitempty"`
	IsAuthenticated bool         `json:"is_authenticated"`
	IsLoading       bool         `json:"is_loading"`
}

// Role returns the user's role, or "" when the user is unknown.
func (s Snapshot) Role() domain.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Backend is the part of the API the session calls.
type Backend interface {
	IdentityChecker
	Login(ctx context.Context, phone, password string) (*client.LoginResult, error)
}

// Notifier surfaces user-facing messages.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// Navigator moves the user to another screen.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// OfflineStrategy may authenticate a login locally when the backend could
// not be reached at all. It is never consulted for rejected credentials.
type OfflineStrategy interface {
	Login(phone, password string) (*client.LoginResult, bool)
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier sets the Notifier. The default logs messages.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithNavigator sets the Navigator. The default does nothing.
func WithNavigator(n Navigator) Option {
	return func(s *Session) { s.navigator = n }
}

// WithOfflineStrategy installs a degraded login fallback.
func WithOfflineStrategy(o OfflineStrategy) Option {
	return func(s *Session) { s.offline = o }
}

type loginInput struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is the process-wide authentication state. All token store
// writes go through it.
type Session struct {
	store     *tokenstore.Store
	validator *Validator
	backend   Backend
	logger    *slog.Logger
	notifier  Notifier
	navigator Navigator
	offline   OfflineStrategy

	mu         sync.RWMutex
	state      State
	token      string
	user       *domain.User
	loading    bool
	generation uint64

	// writeMu serializes token store writes with generation checks so a
	// late refresh cannot resurrect a cleared credential.
	writeMu sync.Mutex

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
}

// New creates a Session in the Initializing state. Call Init before use.
func New(store *tokenstore.Store, v *Validator, backend Backend, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		store:     store,
		validator: v,
		backend:   backend,
		logger:    logger,
		navigator: nopNavigator{},
		state:     StateInitializing,
		loading:   true,
		subs:      make(map[chan Snapshot]struct{}),
	}
	s.notifier = logNotifier{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init restores the persisted credential. It returns as soon as the
// session state is known; a background refresh may still be running.
func (s *Session) Init(ctx context.Context) Snapshot {
	cred := s.store.Load(ctx)

	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	// The optimistic result must be visible before any refresh lands.
	published := make(chan struct{})
	res := s.validator.Resolve(ctx, cred, func(ctx context.Context, token string, user *domain.User) {
		select {
		case <-published:
		case <-ctx.Done():
			return
		}
		s.applyRefresh(ctx, gen, token, user)
	})
	defer close(published)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.generation != gen {
		// A login or logout happened while resolving.
		s.mu.Unlock()
		return s.Snapshot()
	}
	if res.Valid {
		s.state = StateAuthenticated
		s.token = cred.Token
		s.user = res.User
	} else {
		s.state = StateUnauthenticated
		s.token = ""
		s.user = nil
	}
	s.loading = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	switch {
	case res.Valid && res.Persist && res.User != nil:
		if err := s.store.Save(ctx, cred.Token, res.User); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist restored user", slog.String("error", err.Error()))
		}
	case !res.Valid && cred.HasToken():
		if err := s.store.Clear(ctx); err != nil {
			s.logger.ErrorContext(ctx, "failed to clear rejected credential", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "session initialized",
		slog.String("state", snap.State.String()),
		slog.Bool("cached_user", cred.User != nil),
	)
	s.publish(snap)
	return snap
}

// Login authenticates against the backend, falling back to the offline
// strategy only when the backend could not be reached. On failure the
// session and the token store are left untouched.
func (s *Session) Login(ctx context.Context, phone, password string) (*domain.User, error) {
	if err := validator.Validate(loginInput{Phone: phone, Password: password}); err != nil {
		loginsTotal.WithLabelValues("invalid_input").Inc()
		s.notifier.Error(ctx, "Phone and password are required")
		return nil, err
	}

	s.setLoading(true)
	defer s.setLoading(false)

	res, err := s.backend.Login(ctx, phone, password)
	offline := false
	if err != nil && s.offline != nil && apperrors.IsTransient(err) {
		if r, ok := s.offline.Login(phone, password); ok {
			s.logger.WarnContext(ctx, "backend unreachable, using offline login", slog.String("error", err.Error()))
			res, err, offline = r, nil, true
		}
	}
	if err != nil {
		result := "failed"
		msg := "Login failed, please try again"
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			result = "rejected"
			msg = errorMessage(err)
		}
		loginsTotal.WithLabelValues(result).Inc()
		s.logger.WarnContext(ctx, "login failed", slog.String("error", err.Error()))
		s.notifier.Error(ctx, msg)
		return nil, err
	}

	user := res.User
	if user == nil {
		user = s.identify(ctx, res.Token, offline)
	}

	s.writeMu.Lock()
	if err := s.store.Save(ctx, res.Token, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist credential", slog.String("error", err.Error()))
	}
	s.mu.Lock()
	s.generation++
	s.state = StateAuthenticated
	s.token = res.Token
	s.user = user
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.writeMu.Unlock()

	if offline {
		loginsTotal.WithLabelValues("offline").Inc()
	} else {
		loginsTotal.WithLabelValues("success").Inc()
	}
	attrs := []any{slog.Bool("offline", offline)}
	if user != nil {
		attrs = append(attrs, slog.Int64("user_id", user.ID), slog.String("role", user.Role.String()))
	}
	s.logger.InfoContext(ctx, "login succeeded", attrs...)

	s.publish(snap)
	s.notifier.Success(ctx, welcome(user))
	s.navigator.Navigate(ctx, PathDashboard)
	return user, nil
}

// identify finds the user for a token the login response came without.
func (s *Session) identify(ctx context.Context, token string, offline bool) *domain.User {
	if user, ok := auth.DecodeTokenPayload(token, s.validator.now()); ok {
		return user
	}
	if offline {
		return nil
	}
	user, err := s.backend.Me(ctx, token)
	if err != nil {
		s.logger.WarnContext(ctx, "identity lookup after login failed", slog.String("error", err.Error()))
		return nil
	}
	return user
}

// Logout clears the credential and the in-memory state. Store failures
// are logged, never returned.
func (s *Session) Logout(ctx context.Context) {
	s.writeMu.Lock()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear credential", slog.String("error", err.Error()))
	}
	s.mu.Lock()
	s.generation++
	s.state = StateUnauthenticated
	s.token = ""
	s.user = nil
	s.loading = false
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.logger.InfoContext(ctx, "logged out")
	s.publish(snap)
	s.notifier.Success(ctx, "Signed out")
	s.navigator.Navigate(ctx, PathLogin)
}

// applyRefresh replaces the user found by a background check, unless the
// session has moved on since the check started.
func (s *Session) applyRefresh(ctx context.Context, gen uint64, token string, user *domain.User) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.generation != gen || s.state != StateAuthenticated || s.token != token {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding stale identity refresh")
		return
	}
	s.user = user
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.store.Save(ctx, token, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist refreshed user", slog.String("error", err.Error()))
	}
	s.logger.DebugContext(ctx, "identity refreshed", slog.Int64("user_id", user.ID))
	s.publish(snap)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:           s.state,
		Token:           s.token,
		IsAuthenticated: s.state == StateAuthenticated && s.token != "",
		IsLoading:       s.loading,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// Subscribe returns a channel receiving every state change. Slow readers
// only see the latest snapshot. Call the returned function to stop.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Drop the stale value and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Wait blocks until background refreshes have finished.
func (s *Session) Wait() {
	s.validator.Wait()
}

func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

func welcome(user *domain.User) string {
	if user == nil {
		return "Welcome back"
	}
	return "Welcome back, " + user.DisplayName()
}

type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Success(ctx context.Context, message string) {
	n.logger.InfoContext(ctx, "notify", slog.String("kind", "success"), slog.String("message", message))
}

func (n logNotifier) Error(ctx context.Context, message string) {
	n.logger.InfoContext(ctx, "notify", slog.String("kind", "error"), slog.String("message", message))
}

type nopNavigator struct{}

func (nopNavigator) Navigate(context.Context, string) {}
