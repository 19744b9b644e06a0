package token

import (
	"strings"
	"time"
)

// Token type claim values.
const (
	TypeAccess = "access"
)

// AccessTokenParams carries everything needed to mint an access token.
type AccessTokenParams struct {
	UserID      uint
	ClientID    string
	Scopes      string
	Roles       []string
	Permissions []string
	Lifetime    time.Duration
}

// IDTokenParams carries everything needed to mint an OpenID Connect ID token.
type IDTokenParams struct {
	Subject     uint
	Audience    string
	Nonce       string
	AuthTime    time.Time
	AccessToken string // for at_hash
	Lifetime    time.Duration
	Scopes      string

	// Profile claims, included only when the matching scope is granted.
	Username string
	FullName string
	Email    string
}

// Claims is the validated view of an access token.
type Claims struct {
	UserID      uint
	ClientID    string
	Scopes      string
	Roles       []string
	Permissions []string
	JTI         string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// HasScope reports whether the token grants the given scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range strings.Fields(c.Scopes) {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopeSet returns the token's scopes as a membership set.
func ScopeSet(scopes string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range strings.Fields(scopes) {
		set[s] = struct{}{}
	}
	return set
}
