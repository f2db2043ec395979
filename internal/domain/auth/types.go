package auth

// Package auth contains domain-level types for portal sessions and route authorization.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"fmt"
	"strings"
)

// Role represents an application's authorization role.
// It is a closed set: every switch over Role must handle RoleCitizen and RoleAdmin.
type Role string

const (
	RoleCitizen Role = "Citizen"
	RoleAdmin   Role = "Admin"
)

// ParseRole maps the backend's role string onto the closed Role set.
// Matching is case-insensitive; "user" is accepted as a legacy alias for Citizen.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "citizen", "user":
		return RoleCitizen, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so decoding an unknown role fails.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// UserIdentity is the authenticated principal returned by GET /api/auth/me.
// It is immutable once committed; a profile change is observed through a new resolution.
type UserIdentity struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Validate rejects an identity that does not name a real principal: a missing id or
// email, or a role outside the closed set. Decoding `{}` or `null` yields such a value.
func (u UserIdentity) Validate() error {
	switch u.Role {
	case RoleAdmin, RoleCitizen:
	default:
		return fmt.Errorf("unknown role %q", string(u.Role))
	}
	if u.ID == 0 {
		return errors.New("identity has no id")
	}
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("identity has no email")
	}
	return nil
}

// IsAdmin reports whether the identity carries the admin role.
func (u UserIdentity) IsAdmin() bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleCitizen:
		return false
	default:
		return false
	}
}

// RedirectIntent is a short-lived preference for where a visitor lands after login.
// It is cleared by the transition that commits an identity resolution.
type RedirectIntent int

const (
	IntentNone RedirectIntent = iota
	IntentAdminDashboard
)

// Snapshot is an immutable view of a session's state for one render pass.
type Snapshot struct {
	Token           string         `json:"-"`
	User            *UserIdentity  `json:"user,omitempty"`
	IsLoadingUser   bool           `json:"is_loading_user"`
	PendingRedirect RedirectIntent `json:"-"`
}

// IsAuthenticated reports whether a bearer token is present.
func (s Snapshot) IsAuthenticated() bool { return s.Token != "" }

// IsAdmin reports whether a resolved identity with the admin role is present.
func (s Snapshot) IsAdmin() bool { return s.User != nil && s.User.IsAdmin() }

// RouteRequirement tags a route with the access it needs. It is static route configuration.
type RouteRequirement int

const (
	Public RouteRequirement = iota
	RequiresAuth
	RequiresAdmin
)

func (r RouteRequirement) String() string {
	switch r {
	case Public:
		return "public"
	case RequiresAuth:
		return "requires_auth"
	case RequiresAdmin:
		return "requires_admin"
	default:
		return fmt.Sprintf("requirement(%d)", int(r))
	}
}
