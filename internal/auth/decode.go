// Package auth reads the identity claims carried inside a bearer token.
//
// The client never verifies token signatures; it has no key and the
// backend remains the authority. Decoding only lets a restored session
// show who is signed in before the backend has been asked.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/fieldsales/internal/domain"
)

var parser = jwt.NewParser()

// DecodeTokenPayload extracts a minimal user from token's payload. The
// boolean is false when the payload cannot be read or carries none of
// sub, id or phone. It never panics.
func DecodeTokenPayload(token string, now time.Time) (user *domain.User, ok bool) {
	defer func() {
		if recover() != nil {
			user, ok = nil, false
		}
	}()

	claims, found := payloadClaims(strings.TrimSpace(token))
	if !found {
		return nil, false
	}
	return userFromClaims(claims, now)
}

func payloadClaims(token string) (map[string]any, bool) {
	if token == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		return claims, true
	}

	// Not a well-formed JWT: try the second segment, or the whole token
	// when it has no dots, as bare base64 JSON.
	segment := token
	if parts := strings.Split(token, "."); len(parts) >= 2 {
		segment = parts[1]
	}
	raw, ok := decodeSegment(segment)
	if !ok {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func decodeSegment(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}

func userFromClaims(claims map[string]any, now time.Time) (*domain.User, bool) {
	u := &domain.User{
		Role:      domain.RoleAgent,
		IsActive:  true,
		CreatedAt: now,
	}

	usable := false
	for _, key := range []string{"sub", "id"} {
		if id, ok := intClaim(claims[key]); ok {
			u.ID = id
			usable = true
			break
		}
	}
	if phone, ok := claims["phone"].(string); ok && phone != "" {
		u.Phone = phone
		usable = true
	}
	if !usable {
		return nil, false
	}

	if s, ok := claims["role"].(string); ok {
		if r, ok := domain.ParseRole(s); ok {
			u.Role = r
		}
	}
	if name, ok := claims["name"].(string); ok {
		u.Name = name
	}
	if active, ok := claims["is_active"].(bool); ok {
		u.IsActive = active
	}
	if t, ok := timeClaim(claims["created_at"]); ok {
		u.CreatedAt = t
	}
	if mid, ok := intClaim(claims["manager_id"]); ok {
		u.ManagerID = &mid
	}

	return u, true
}

func intClaim(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n >= 1<<63 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func timeClaim(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		parsed, err := domain.ParseTimestamp(t)
		return parsed, err == nil
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
