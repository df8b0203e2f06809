package auth

import (
	"encoding/base64"
	"math"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/fieldsales/internal/domain"
)

var fixedNow = time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)

func mint(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-side-secret"))
	require.NoError(t, err)
	return tok
}

func TestDecodeTokenPayload_FullClaims(t *testing.T) {
	tok := mint(t, jwt.MapClaims{
		"sub":        "42",
		"phone":      "0712345678",
		"role":       "manager",
		"name":       "Baraka",
		"is_active":  false,
		"created_at": "2024-06-01T10:00:00Z",
		"exp":        fixedNow.Add(time.Hour).Unix(),
	})

	u, ok := DecodeTokenPayload(tok, fixedNow)
	require.True(t, ok)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "0712345678", u.Phone)
	assert.Equal(t, domain.RoleManager, u.Role)
	assert.Equal(t, "Baraka", u.Name)
	assert.False(t, u.IsActive)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), u.CreatedAt)
}

func TestDecodeTokenPayload_Defaults(t *testing.T) {
	tok := mint(t, jwt.MapClaims{"id": 7})

	u, ok := DecodeTokenPayload(tok, fixedNow)
	require.True(t, ok)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, domain.RoleAgent, u.Role)
	assert.True(t, u.IsActive)
	assert.Equal(t, fixedNow, u.CreatedAt)
	assert.Nil(t, u.ManagerID)
}

func TestDecodeTokenPayload_UnknownRoleBecomesAgent(t *testing.T) {
	tok := mint(t, jwt.MapClaims{"sub": 1, "role": "superuser"})

	u, ok := DecodeTokenPayload(tok, fixedNow)
	require.True(t, ok)
	assert.Equal(t, domain.RoleAgent, u.Role)
}

func TestDecodeTokenPayload_PhoneOnly(t *testing.T) {
	tok := mint(t, jwt.MapClaims{"phone": "0700111222", "manager_id": 3})

	u, ok := DecodeTokenPayload(tok, fixedNow)
	require.True(t, ok)
	assert.Zero(t, u.ID)
	assert.Equal(t, "0700111222", u.Phone)
	require.NotNil(t, u.ManagerID)
	assert.Equal(t, int64(3), *u.ManagerID)
}

func TestDecodeTokenPayload_ExpiredStillDecodes(t *testing.T) {
	// Expiry is the backend's call; the restored session waits for it.
	tok := mint(t, jwt.MapClaims{"sub": 5, "exp": fixedNow.Add(-time.Hour).Unix()})

	_, ok := DecodeTokenPayload(tok, fixedNow)
	assert.True(t, ok)
}

func TestDecodeTokenPayload_BareBase64Payload(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"id":"19","role":"ADMIN"}`))

	u, ok := DecodeTokenPayload(payload, fixedNow)
	require.True(t, ok)
	assert.Equal(t, int64(19), u.ID)
	assert.Equal(t, domain.RoleAdmin, u.Role)
}

func TestDecodeTokenPayload_MalformedHeaderFallsBackToPayload(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte(`{"sub":8}`))

	u, ok := DecodeTokenPayload("garbage."+payload+".sig", fixedNow)
	require.True(t, ok)
	assert.Equal(t, int64(8), u.ID)
}

func TestDecodeTokenPayload_Unusable(t *testing.T) {
	tests := map[string]string{
		"empty":            "",
		"opaque":           "3f1c2a9e-opaque-session",
		"not json":         base64.RawURLEncoding.EncodeToString([]byte("hello")),
		"json array":       base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`)),
		"no identity":      mint(t, jwt.MapClaims{"role": "ADMIN", "name": "nobody"}),
		"non numeric sub":  mint(t, jwt.MapClaims{"sub": "abc"}),
		"fractional id":    mint(t, jwt.MapClaims{"id": 1.5}),
		"id past int64":    mint(t, jwt.MapClaims{"id": float64(1 << 63)}),
		"empty phone":      mint(t, jwt.MapClaims{"phone": ""}),
		"three dots noise": "a.b.c.d",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			u, ok := DecodeTokenPayload(tok, fixedNow)
			assert.False(t, ok)
			assert.Nil(t, u)
		})
	}
}

func TestIntClaim_Float64Bounds(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int64
		ok   bool
	}{
		{"largest exact below 2^63", float64(1<<62) * 1.5, 1<<62 + 1<<61, true},
		{"2^63 overflows", float64(1 << 63), 0, false},
		{"min int64", float64(math.MinInt64), math.MinInt64, true},
		{"below min int64", -float64(1 << 64), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := intClaim(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
