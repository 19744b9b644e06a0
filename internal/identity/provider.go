package identity

import "context"

// Identity is the resolved view of a resource owner: who they are plus the
// role and permission claims projected into tokens.
type Identity struct {
	UserID      uint
	Username    string
	Email       string
	FullName    string
	Roles       []string
	Permissions []string
}

// Provider abstracts the user system. The local provider reads the database
// directly; the httpapi provider delegates to an external identity service.
type Provider interface {
	// Authenticate verifies a username-or-email plus password pair and
	// returns the full identity including claims.
	Authenticate(ctx context.Context, login, password string) (*Identity, error)

	// Lookup returns the identity for a known subject. Used by token
	// issuance after a refresh grant and by the userinfo endpoint.
	Lookup(ctx context.Context, userID uint) (*Identity, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}
