package domain

import "strings"

// Role is the authorization role carried by a User.
type Role string

// Role constants define the allowed user roles.
const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleAgent   Role = "AGENT"
)

// ValidRoles returns the set of valid user roles.
func ValidRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleAgent}
}

// ParseRole matches s against the known roles case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range ValidRoles() {
		if v == r {
			return r, true
		}
	}
	return "", false
}

// IsValid checks whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleAgent
}

func (r Role) String() string { return string(r) }
