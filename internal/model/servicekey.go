package model

import (
	"slices"
	"time"
)

// Scope constants for service keys and sessions.
const (
	ScopeDispatch = "dispatch"
	ScopePublish  = "publish"
	ScopePush     = "push"
	ScopeAdmin    = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeDispatch, ScopePublish, ScopePush, ScopeAdmin}

// ServiceKey is a machine credential used by schedulers and tooling.
type ServiceKey struct {
	ID         string     `json:"id"`
	KeyHash    string     `json:"-"` // Never serialize
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	Name       string     `json:"name,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *ServiceKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// HasScope checks if the key has a specific scope.
// Admin scope implies all other scopes.
func (k *ServiceKey) HasScope(scope string) bool {
	if slices.Contains(k.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(k.Scopes, scope)
}

// Principal kinds.
const (
	PrincipalServiceKey = "service_key"
	PrincipalSession    = "session"
)

// AuthContext holds the authenticated caller of a request.
// It is injected into the request context by auth middleware.
type AuthContext struct {
	Kind      string
	KeyID     string
	KeyPrefix string
	Subject   string
	Role      Role
	Scopes    []string
}

// HasScope checks if the auth context has a specific scope.
func (a *AuthContext) HasScope(scope string) bool {
	if slices.Contains(a.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(a.Scopes, scope)
}
