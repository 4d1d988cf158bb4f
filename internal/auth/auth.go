// Package auth holds console identities: roles, password hashing and API bearer tokens.
package auth

import (
	"errors"
	"strings"
)

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"

	MethodPassword = "password"
	MethodToken    = "token"

	// DemoAdminEmail and DemoAdminPassword are seeded in mock mode when no users exist.
	DemoAdminEmail    = "admin@example.com"
	DemoAdminPassword = "stackspend-demo"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type Principal struct {
	UserID int64
	Email  string
	Role   string // "admin" or "viewer"
	Method string // "password" for console sessions, "token" for API calls
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleViewer
}
