package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// User is the identity returned by the backend. Users are replaced
// wholesale on refresh, never mutated in place.
type User struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	Name      string    `json:"name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	// ManagerID is only meaningful for agents.
	ManagerID *int64 `json:"manager_id,omitempty"`
}

// timestampLayouts are the created_at shapes the backend has been seen to
// emit. Naive timestamps are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a backend timestamp in any of the accepted layouts.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON accepts naive created_at values and normalizes the role.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		Role      string `json:"role"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*u = User(aux.plain)
	if r, ok := ParseRole(aux.Role); ok {
		u.Role = r
	} else {
		u.Role = Role(aux.Role)
	}
	if aux.CreatedAt != "" {
		t, err := ParseTimestamp(aux.CreatedAt)
		if err != nil {
			return err
		}
		u.CreatedAt = t
	}
	return nil
}

// DisplayName returns the name, falling back to the phone number.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Phone
}
