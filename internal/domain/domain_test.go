package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"ADMIN", RoleAdmin, true},
		{"manager", RoleManager, true},
		{" Agent ", RoleAgent, true},
		{"superuser", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_IsValid(t *testing.T) {
	for _, r := range ValidRoles() {
		assert.True(t, r.IsValid(), r)
	}
	assert.False(t, Role("agent").IsValid())
	assert.False(t, Role("ROOT").IsValid())
}

func TestUser_UnmarshalJSON(t *testing.T) {
	raw := `{"id":12,"phone":"0712345678","role":"agent","name":"Asha","is_active":true,"created_at":"2024-03-01T08:30:00","manager_id":4}`

	var u User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))

	assert.Equal(t, int64(12), u.ID)
	assert.Equal(t, RoleAgent, u.Role)
	assert.Equal(t, "Asha", u.Name)
	assert.True(t, u.IsActive)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), u.CreatedAt)
	require.NotNil(t, u.ManagerID)
	assert.Equal(t, int64(4), *u.ManagerID)
}

func TestUser_RoundTripKeepsWireNames(t *testing.T) {
	u := User{ID: 3, Phone: "0700", Role: RoleManager, IsActive: true, CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "MANAGER", m["role"])
	assert.Equal(t, true, m["is_active"])
	assert.NotContains(t, m, "manager_id")

	var back User
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, u, back)
}

func TestUser_BadTimestamp(t *testing.T) {
	var u User
	assert.Error(t, json.Unmarshal([]byte(`{"id":1,"created_at":"yesterday"}`), &u))
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Asha", User{Name: "Asha", Phone: "07"}.DisplayName())
	assert.Equal(t, "07", User{Phone: "07"}.DisplayName())
}

func TestParseVisitKind(t *testing.T) {
	k, err := ParseVisitKind("customer")
	require.NoError(t, err)
	assert.Equal(t, VisitCustomer, k)

	_, err = ParseVisitKind("party")
	assert.Error(t, err)
}

func TestAnswers_MarshalPreservesOrder(t *testing.T) {
	var a Answers
	a.Set("zeta", "last letter")
	a.Set("alpha", 1)
	nested := Answers{}
	nested.Set("b", true)
	nested.Set("a", []any{"x", "y"})
	a.Set("mid", nested)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"last letter","alpha":1,"mid":{"b":true,"a":["x","y"]}}`, string(data))
}

func TestAnswers_SetReplacesInPlace(t *testing.T) {
	var a Answers
	a.Set("q1", "yes")
	a.Set("q2", "no")
	a.Set("q1", "maybe")

	assert.Equal(t, []string{"q1", "q2"}, a.Keys())
	v, ok := a.Get("q1")
	assert.True(t, ok)
	assert.Equal(t, "maybe", v)
}

func TestAnswers_UnmarshalPreservesOrder(t *testing.T) {
	raw := `{"stock_level":"low","competitors":{"zeta":2,"acme":1},"tags":[1,{"k":"v"}],"ok":true,"none":null}`

	var a Answers
	require.NoError(t, json.Unmarshal([]byte(raw), &a))

	assert.Equal(t, []string{"stock_level", "competitors", "tags", "ok", "none"}, a.Keys())
	comp, _ := a.Get("competitors")
	require.IsType(t, Answers{}, comp)
	assert.Equal(t, []string{"zeta", "acme"}, comp.(Answers).Keys())

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
	assert.Equal(t, raw, string(out))
}

func TestAnswers_UnmarshalRejectsNonObject(t *testing.T) {
	var a Answers
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &a))
}

func TestAnswers_Empty(t *testing.T) {
	data, err := json.Marshal(Answers(nil))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
