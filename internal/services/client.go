package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/models"
	"github.com/go-authcore/authcore/internal/store"

	"github.com/google/uuid"
)

var (
	ErrClientNotFound     = errors.New("client not found")
	ErrInvalidClientType  = errors.New("client type must be confidential or public")
	ErrInvalidGrantTypes  = errors.New("unsupported grant type for this server")
	ErrNoRedirectURI      = errors.New("at least one redirect URI is required")
	ErrMalformedRedirect  = errors.New("redirect URI must be an absolute URL without fragment")
	ErrLastRedirectURI    = errors.New("cannot remove the last redirect URI")
	ErrPublicClientSecret = errors.New("public clients cannot hold a secret")
)

// serverGrantTypes is the full grant surface this server implements.
var serverGrantTypes = map[string]struct{}{
	"authorization_code": {},
	"refresh_token":      {},
}

// ClientService manages the client registry. Hot-path lookups go straight to
// the store; this service carries the mutation rules.
type ClientService struct {
	store  *store.Store
	config *config.Config
	audit  *AuditService
}

// NewClientService creates a new client registry service.
func NewClientService(s *store.Store, cfg *config.Config, audit *AuditService) *ClientService {
	return &ClientService{store: s, config: cfg, audit: audit}
}

// CreateClientInput is the admin-facing creation request.
type CreateClientInput struct {
	Name                 string
	ClientType           string
	RequirePKCE          bool
	AccessTokenLifetime  int
	RefreshTokenLifetime int
	GrantTypes           []string
	Scopes               []string
	RedirectURIs         []string
}

// Create registers a new client. The returned plaintext secret is shown
// exactly once and never stored; public clients get no secret at all.
func (s *ClientService) Create(ctx context.Context, input CreateClientInput) (*models.OAuthClient, string, error) {
	if input.ClientType == "" {
		input.ClientType = models.ClientTypeConfidential
	}
	if input.ClientType != models.ClientTypeConfidential && input.ClientType != models.ClientTypePublic {
		return nil, "", ErrInvalidClientType
	}
	if len(input.RedirectURIs) == 0 {
		return nil, "", ErrNoRedirectURI
	}
	for _, uri := range input.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return nil, "", err
		}
	}

	grantTypes := input.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{"authorization_code", "refresh_token"}
	}
	for _, g := range grantTypes {
		if _, ok := serverGrantTypes[g]; !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrInvalidGrantTypes, g)
		}
	}

	client := &models.OAuthClient{
		ClientID:             uuid.NewString(),
		Name:                 input.Name,
		ClientType:           input.ClientType,
		RequirePKCE:          input.RequirePKCE,
		AccessTokenLifetime:  input.AccessTokenLifetime,
		RefreshTokenLifetime: input.RefreshTokenLifetime,
		GrantTypes:           strings.Join(grantTypes, " "),
		Scopes:               strings.Join(input.Scopes, " "),
		IsActive:             true,
	}

	// PKCE is not optional for public clients
	if client.IsPublic() {
		client.RequirePKCE = true
	}

	var secret string
	if !client.IsPublic() {
		var err error
		secret, err = client.GenerateClientSecret()
		if err != nil {
			return nil, "", err
		}
	}

	for i, uri := range input.RedirectURIs {
		client.RedirectURIs = append(client.RedirectURIs, models.RedirectURI{
			URI:       uri,
			IsDefault: i == 0,
		})
	}

	if err := s.store.CreateClient(client); err != nil {
		return nil, "", err
	}

	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventClientCreated,
		ClientID:  client.ClientID,
		Details: models.AuditDetails{
			"name":        client.Name,
			"client_type": client.ClientType,
		},
	})

	return client, secret, nil
}

// Get returns a client by client_id, regardless of active state.
func (s *ClientService) Get(clientID string) (*models.OAuthClient, error) {
	client, err := s.store.GetClientByClientID(clientID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	return client, err
}

// List returns a page of clients.
func (s *ClientService) List(params store.PaginationParams) ([]models.OAuthClient, store.PaginationResult, error) {
	return s.store.ListClients(params)
}

// UpdateClientInput carries the mutable client fields. Nil pointers leave the
// field unchanged.
type UpdateClientInput struct {
	Name                 *string
	RequirePKCE          *bool
	AccessTokenLifetime  *int
	RefreshTokenLifetime *int
	Scopes               []string
}

// Update applies the given changes to a client.
func (s *ClientService) Update(ctx context.Context, clientID string, input UpdateClientInput) (*models.OAuthClient, error) {
	client, err := s.Get(clientID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		client.Name = *input.Name
	}
	if input.RequirePKCE != nil {
		client.RequirePKCE = *input.RequirePKCE
	}
	if input.AccessTokenLifetime != nil {
		client.AccessTokenLifetime = *input.AccessTokenLifetime
	}
	if input.RefreshTokenLifetime != nil {
		client.RefreshTokenLifetime = *input.RefreshTokenLifetime
	}
	if input.Scopes != nil {
		client.Scopes = strings.Join(input.Scopes, " ")
	}

	// The PKCE requirement stays pinned for public clients
	if client.IsPublic() {
		client.RequirePKCE = true
	}

	if err := s.store.UpdateClient(client); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventClientUpdated,
		ClientID:  client.ClientID,
	})

	return client, nil
}

// RegenerateSecret replaces a confidential client's secret and returns the
// new plaintext once. Tokens already issued stay valid.
func (s *ClientService) RegenerateSecret(ctx context.Context, clientID string) (string, error) {
	client, err := s.Get(clientID)
	if err != nil {
		return "", err
	}
	if client.IsPublic() {
		return "", ErrPublicClientSecret
	}

	secret, err := client.GenerateClientSecret()
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateClient(client); err != nil {
		return "", err
	}

	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventClientUpdated,
		ClientID:  client.ClientID,
		Details:   models.AuditDetails{"action": "secret_regenerated"},
	})

	return secret, nil
}

// AddRedirectURI registers an additional redirect URI.
func (s *ClientService) AddRedirectURI(ctx context.Context, clientID, uri string) (*models.RedirectURI, error) {
	if err := validateRedirectURI(uri); err != nil {
		return nil, err
	}

	client, err := s.Get(clientID)
	if err != nil {
		return nil, err
	}

	record := &models.RedirectURI{ClientID: client.ID, URI: uri}
	if err := s.store.AddRedirectURI(record); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventClientUpdated,
		ClientID:  client.ClientID,
		Details:   models.AuditDetails{"action": "redirect_uri_added", "uri": uri},
	})

	return record, nil
}

// RemoveRedirectURI deletes a redirect URI. The last one cannot be removed,
// because a client without redirect URIs can never complete the code flow.
func (s *ClientService) RemoveRedirectURI(ctx context.Context, clientID string, uriID uint) error {
	client, err := s.Get(clientID)
	if err != nil {
		return err
	}
	if len(client.RedirectURIs) <= 1 {
		return ErrLastRedirectURI
	}

	if err := s.store.RemoveRedirectURI(client.ID, uriID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrClientNotFound
		}
		return err
	}

	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventClientUpdated,
		ClientID:  client.ClientID,
		Details:   models.AuditDetails{"action": "redirect_uri_removed"},
	})

	return nil
}

// Deactivate soft-deletes a client. Already issued refresh tokens stop
// working because the hot path only sees active clients.
func (s *ClientService) Deactivate(ctx context.Context, clientID string) error {
	err := s.store.DeactivateClient(clientID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return ErrClientNotFound
	}
	if err != nil {
		return err
	}

	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventClientDeactivated,
		Severity:  models.SeverityWarning,
		ClientID:  clientID,
	})

	return nil
}

func validateRedirectURI(uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" || parsed.Fragment != "" {
		return fmt.Errorf("%w: %s", ErrMalformedRedirect, uri)
	}
	return nil
}
