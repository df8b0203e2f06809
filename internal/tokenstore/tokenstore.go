// Package tokenstore persists the session credential (bearer token, cached
// user snapshot and capture time) under three fixed keys. The three values
// are written together and cleared together, but a reader tolerates any
// subset being present.
package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/utafrali/fieldsales/internal/domain"
)

// Persisted key names.
const (
	KeyToken     = "auth_token"
	KeyUser      = "user"
	KeyTimestamp = "auth_timestamp"
)

// Keys lists every key a Store owns.
var Keys = []string{KeyToken, KeyUser, KeyTimestamp}

// PersistedCredential is whatever subset of the credential was found.
type PersistedCredential struct {
	Token      string
	User       *domain.User
	CapturedAt time.Time
}

// HasToken reports whether a bearer token was found.
func (c PersistedCredential) HasToken() bool { return c.Token != "" }

// Backend is the raw key/value layer a Store is built on.
type Backend interface {
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetAll writes every pair. Backends apply the writes as one unit where
	// the medium allows it.
	SetAll(ctx context.Context, values map[string]string) error
	// Delete removes the keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Store encodes credentials onto a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Store over backend.
func New(backend Backend, logger *slog.Logger) *Store {
	return &Store{backend: backend, logger: logger, now: time.Now}
}

// Save writes token, user and the capture time. Last write wins.
func (s *Store) Save(ctx context.Context, token string, user *domain.User) error {
	values := map[string]string{
		KeyToken:     token,
		KeyTimestamp: strconv.FormatInt(s.now().UnixMilli(), 10),
	}
	if user != nil {
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		values[KeyUser] = string(data)
	}

	if err := s.backend.SetAll(ctx, values); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if user == nil {
		// A nil user must not leave a stale snapshot next to the new token.
		if err := s.backend.Delete(ctx, KeyUser); err != nil {
			return fmt.Errorf("drop stale user: %w", err)
		}
	}
	return nil
}

// Load returns whatever subset of the credential exists. It never fails:
// unreadable or corrupt values are logged and reported as absent.
func (s *Store) Load(ctx context.Context) PersistedCredential {
	var cred PersistedCredential

	if token, ok := s.get(ctx, KeyToken); ok {
		cred.Token = token
	}

	if raw, ok := s.get(ctx, KeyUser); ok {
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.logger.WarnContext(ctx, "discarding corrupt cached user", slog.String("error", err.Error()))
		} else {
			cred.User = &u
		}
	}

	if raw, ok := s.get(ctx, KeyTimestamp); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cred.CapturedAt = time.UnixMilli(ms)
		} else {
			s.logger.WarnContext(ctx, "discarding corrupt auth timestamp", slog.String("error", err.Error()))
		}
	}

	return cred
}

// Clear removes all three keys.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, Keys...); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "token store read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", false
	}
	return v, ok && v != ""
}
