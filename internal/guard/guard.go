// Package guard decides whether a protected screen may be shown for the
// current session, and where to send the user otherwise.
package guard

import (
	"slices"

	"github.com/utafrali/fieldsales/internal/domain"
)

// Well-known paths.
const (
	PathLogin        = "/login"
	PathUnauthorized = "/unauthorized"
)

// landing maps each role to its home screen.
var landing = map[domain.Role]string{
	domain.RoleAdmin:   "/admin",
	domain.RoleManager: "/manager",
	domain.RoleAgent:   "/agent",
}

// LandingPage returns the home screen for role, or /unauthorized for an
// unknown role.
func LandingPage(role domain.Role) string {
	if p, ok := landing[role]; ok {
		return p
	}
	return PathUnauthorized
}

// Kind is what the caller should do.
type Kind int

const (
	Render Kind = iota
	Redirect
)

func (k Kind) String() string {
	if k == Redirect {
		return "redirect"
	}
	return "render"
}

// Content is what to render.
type Content int

const (
	Protected Content = iota
	Loading
)

func (c Content) String() string {
	if c == Loading {
		return "loading"
	}
	return "protected"
}

// Decision is the guard's verdict.
type Decision struct {
	Kind    Kind
	Content Content
	// Location is set for redirects.
	Location string
}

// RedirectTo builds a redirect decision.
func RedirectTo(path string) Decision {
	return Decision{Kind: Redirect, Location: path}
}

// Input is the session state the guard looks at.
type Input struct {
	Loading         bool
	IsAuthenticated bool
	// HasToken reports a stored token even when the session has not
	// caught up yet.
	HasToken bool
	Role     domain.Role
}

// Decide returns the decision for a screen requiring one of the roles.
// An empty required list admits any authenticated user.
func Decide(in Input, required ...domain.Role) Decision {
	if in.Loading {
		return Decision{Kind: Render, Content: Loading}
	}
	if !in.IsAuthenticated && !in.HasToken {
		return RedirectTo(PathLogin)
	}
	if len(required) > 0 && !slices.Contains(required, in.Role) {
		return RedirectTo(LandingPage(in.Role))
	}
	return Decision{Kind: Render, Content: Protected}
}
