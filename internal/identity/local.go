package identity

import (
	"context"
	"errors"

	"github.com/go-authcore/authcore/internal/models"
	"github.com/go-authcore/authcore/internal/store"
)

// LocalProvider authenticates against the users table and projects claims
// from the roles and permissions tables.
type LocalProvider struct {
	store *store.Store
}

// NewLocalProvider creates a database-backed identity provider.
func NewLocalProvider(s *store.Store) *LocalProvider {
	return &LocalProvider{store: s}
}

// Authenticate verifies credentials against the local database. Lookup
// failures and password mismatches are indistinguishable to the caller.
func (p *LocalProvider) Authenticate(ctx context.Context, login, password string) (*Identity, error) {
	user, err := p.store.GetUserByLogin(login)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	return p.buildIdentity(user)
}

// Lookup returns the identity of an active user by id.
func (p *LocalProvider) Lookup(ctx context.Context, userID uint) (*Identity, error) {
	user, err := p.store.GetUserByID(userID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}

	return p.buildIdentity(user)
}

// Name returns provider name for logging
func (p *LocalProvider) Name() string {
	return "local"
}

func (p *LocalProvider) buildIdentity(user *models.User) (*Identity, error) {
	roles, permissions, err := p.store.GetUserClaims(user.ID)
	if err != nil {
		return nil, err
	}

	return &Identity{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		Roles:       roles,
		Permissions: permissions,
	}, nil
}
