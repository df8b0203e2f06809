package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/fieldsales/internal/auth"
	"github.com/utafrali/fieldsales/internal/domain"
	"github.com/utafrali/fieldsales/internal/tokenstore"
	apperrors "github.com/utafrali/fieldsales/pkg/errors"
)

// DefaultRevalidateTimeout bounds a background identity check.
const DefaultRevalidateTimeout = 15 * time.Second

// IdentityChecker fetches the identity behind a token. An error matching
// apperrors.ErrUnauthorized is an authoritative rejection; anything else
// says nothing about the token.
type IdentityChecker interface {
	Me(ctx context.Context, token string) (*domain.User, error)
}

// Resolution is the outcome of validating a persisted credential.
type Resolution struct {
	Valid bool
	// User may be nil on a valid resolution when the identity could not be
	// determined yet.
	User *domain.User
	// Persist asks the owner to write User back to the token store.
	Persist bool
}

// RefreshFunc receives the fresher identity found by a background check.
type RefreshFunc func(ctx context.Context, token string, user *domain.User)

// Validator decides whether a persisted credential is usable. It prefers
// cached data and treats a network failure as "probably still valid";
// only a 401 from a blocking identity check invalidates a token.
//
// Validator never writes the token store.
type Validator struct {
	identity IdentityChecker
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time

	wg sync.WaitGroup
}

// NewValidator creates a Validator. A non-positive timeout selects
// DefaultRevalidateTimeout.
func NewValidator(identity IdentityChecker, logger *slog.Logger, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = DefaultRevalidateTimeout
	}
	return &Validator{
		identity: identity,
		logger:   logger,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Resolve walks the trust tiers:
//
//  1. no token: invalid
//  2. token and cached user: valid immediately, refreshed in the background
//  3. token whose payload decodes: valid with the decoded user
//  4. otherwise a blocking identity check decides
//
// onRefresh is only called from the tier 2 background task and only on
// success. It may be nil.
func (v *Validator) Resolve(ctx context.Context, cred tokenstore.PersistedCredential, onRefresh RefreshFunc) Resolution {
	if !cred.HasToken() {
		return Resolution{}
	}

	if cred.User != nil {
		v.revalidate(ctx, cred.Token, onRefresh)
		return Resolution{Valid: true, User: cred.User}
	}

	if user, ok := auth.DecodeTokenPayload(cred.Token, v.now()); ok {
		v.logger.DebugContext(ctx, "session restored from token payload",
			slog.Int64("user_id", user.ID),
		)
		return Resolution{Valid: true, User: user, Persist: true}
	}

	user, err := v.identity.Me(ctx, cred.Token)
	switch {
	case err == nil:
		return Resolution{Valid: true, User: user, Persist: true}
	case errors.Is(err, apperrors.ErrUnauthorized):
		v.logger.InfoContext(ctx, "stored token rejected by backend")
		return Resolution{}
	default:
		v.logger.WarnContext(ctx, "identity check failed, keeping session",
			slog.String("error", err.Error()),
		)
		return Resolution{Valid: true}
	}
}

// revalidate starts the detached tier 2 identity check. It outlives the
// caller's context but keeps its values for logging and tracing.
func (v *Validator) revalidate(ctx context.Context, token string, onRefresh RefreshFunc) {
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer cancel()

		user, err := v.identity.Me(bgCtx, token)
		if err != nil {
			// A rejection here is not acted on: the cached session stays.
			revalidationsTotal.WithLabelValues("failed").Inc()
			v.logger.WarnContext(bgCtx, "background identity check failed",
				slog.String("error", err.Error()),
				slog.Bool("unauthorized", errors.Is(err, apperrors.ErrUnauthorized)),
			)
			return
		}

		revalidationsTotal.WithLabelValues("refreshed").Inc()
		if onRefresh != nil {
			onRefresh(bgCtx, token, user)
		}
	}()
}

// Wait blocks until every background check has finished.
func (v *Validator) Wait() {
	v.wg.Wait()
}
