package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/identity"
	"github.com/go-authcore/authcore/internal/metrics"
	"github.com/go-authcore/authcore/internal/models"
	"github.com/go-authcore/authcore/internal/store"
	"github.com/go-authcore/authcore/internal/util"
)

// maxStateLength bounds the state and nonce parameters so clients cannot use
// the code table as free storage.
const maxStateLength = 1024

var (
	ErrUnsupportedResponseType = errors.New("only the code response type is supported")
	ErrUnknownClient           = errors.New("unknown or inactive client")
	ErrGrantNotAllowed         = errors.New("client is not allowed this grant type")
	ErrUnregisteredRedirect    = errors.New("redirect URI is not registered for this client")
	ErrScopeNotAllowed         = errors.New("requested scope exceeds the client's allowed scopes")
	ErrPKCERequired            = errors.New("client requires PKCE")
	ErrInvalidChallengeMethod  = errors.New("unsupported code challenge method")
	ErrStateTooLong            = errors.New("state or nonce exceeds the maximum length")
)

// AuthorizationRequest is a parsed /oauth/authorize request.
type AuthorizationRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizationService validates authorization requests and issues single-use
// authorization codes.
type AuthorizationService struct {
	store    *store.Store
	config   *config.Config
	identity identity.Provider
	audit    *AuditService
	metrics  metrics.Recorder
}

// NewAuthorizationService creates a new authorization code issuer.
func NewAuthorizationService(
	s *store.Store,
	cfg *config.Config,
	provider identity.Provider,
	audit *AuditService,
	recorder metrics.Recorder,
) *AuthorizationService {
	return &AuthorizationService{
		store:    s,
		config:   cfg,
		identity: provider,
		audit:    audit,
		metrics:  recorder,
	}
}

// ValidateRequest checks an authorization request against the client
// registry. It returns the client so callers can render client info, and the
// effective scope after defaulting.
//
// Validation order matters: the redirect URI must be proven registered before
// any error can be sent to it, so client and redirect failures never redirect.
func (s *AuthorizationService) ValidateRequest(req AuthorizationRequest) (*models.OAuthClient, string, error) {
	client, err := s.store.GetActiveClientByClientID(req.ClientID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, "", ErrUnknownClient
	}
	if err != nil {
		return nil, "", err
	}

	if !client.AllowsRedirectURI(req.RedirectURI) {
		return nil, "", ErrUnregisteredRedirect
	}

	// From here on the redirect URI is trusted and errors may be delivered
	// to it as query parameters.
	if req.ResponseType != "code" {
		return client, "", ErrUnsupportedResponseType
	}
	if !client.AllowsGrantType("authorization_code") {
		return client, "", ErrGrantNotAllowed
	}
	if len(req.State) > maxStateLength || len(req.Nonce) > maxStateLength {
		return client, "", ErrStateTooLong
	}

	// An absent scope defaults to openid alone, never the client's full
	// allowance. The default still has to pass the subset check.
	scope := req.Scope
	if scope == "" {
		scope = "openid"
	}
	if !scopeSubset(scope, client.Scopes) {
		return client, "", ErrScopeNotAllowed
	}

	if err := s.validatePKCE(client, req); err != nil {
		return client, "", err
	}

	return client, scope, nil
}

// ResolveClient checks just the client and redirect URI pair. The client-info
// endpoint uses this before the login UI has any PKCE material to show.
func (s *AuthorizationService) ResolveClient(clientID, redirectURI string) (*models.OAuthClient, error) {
	client, err := s.store.GetActiveClientByClientID(clientID)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrUnknownClient
	}
	if err != nil {
		return nil, err
	}
	if !client.AllowsRedirectURI(redirectURI) {
		return nil, ErrUnregisteredRedirect
	}
	return client, nil
}

// IsRegisteredRedirect reports whether any active client registered the URI.
// Post-logout redirects are limited to registered targets so logout cannot
// become an open redirector.
func (s *AuthorizationService) IsRegisteredRedirect(uri string) bool {
	registered, err := s.store.RedirectURIExists(uri)
	return err == nil && registered
}

func (s *AuthorizationService) validatePKCE(client *models.OAuthClient, req AuthorizationRequest) error {
	if req.CodeChallenge == "" {
		if client.RequirePKCE || client.IsPublic() {
			return ErrPKCERequired
		}
		return nil
	}

	switch req.CodeChallengeMethod {
	case "", models.CodeChallengeMethodS256:
		return nil
	case models.CodeChallengeMethodPlain:
		if !s.config.PKCEAllowPlain {
			return ErrInvalidChallengeMethod
		}
		return nil
	default:
		return ErrInvalidChallengeMethod
	}
}

// IssueCode mints an authorization code for an authenticated user. The
// plaintext code goes back to the caller; only its hash is stored.
func (s *AuthorizationService) IssueCode(
	ctx context.Context,
	client *models.OAuthClient,
	userID uint,
	req AuthorizationRequest,
	scope string,
) (string, error) {
	code, err := util.CryptoRandomString(32)
	if err != nil {
		return "", err
	}

	method := req.CodeChallengeMethod
	if req.CodeChallenge != "" && method == "" {
		method = models.CodeChallengeMethodS256
	}

	record := &models.AuthorizationCode{
		CodeHash:            util.SHA256Hex(code),
		CodePrefix:          util.TokenPrefix(code, 8),
		ClientID:            client.ID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scopes:              scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: method,
		Nonce:               req.Nonce,
		ExpiresAt:           time.Now().Add(s.config.AuthCodeExpiration),
	}
	if err := s.store.CreateAuthorizationCode(record); err != nil {
		s.metrics.RecordAuthCodeIssued(false)
		return "", err
	}
	s.metrics.RecordAuthCodeIssued(true)

	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventAuthCodeIssued,
		ClientID:  client.ClientID,
		UserID:    util.FormatUserID(userID),
		Details: models.AuditDetails{
			"code_prefix": record.CodePrefix,
			"scope":       scope,
		},
	})

	return code, nil
}

// Login authenticates a resource owner against the identity provider and
// issues a code in one step. This backs the JSON login endpoint.
func (s *AuthorizationService) Login(
	ctx context.Context,
	login, password string,
	req AuthorizationRequest,
) (string, error) {
	client, scope, err := s.ValidateRequest(req)
	if err != nil {
		return "", err
	}

	ident, err := s.identity.Authenticate(ctx, login, password)
	if err != nil {
		s.metrics.RecordLogin(s.identity.Name(), false)
		s.audit.Log(ctx, AuditEntry{
			EventType: models.EventLoginFailure,
			Severity:  models.SeverityWarning,
			ClientID:  client.ClientID,
			Details: models.AuditDetails{
				"login":    login,
				"provider": s.identity.Name(),
			},
		})
		return "", err
	}

	s.metrics.RecordLogin(s.identity.Name(), true)
	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventLoginSuccess,
		ClientID:  client.ClientID,
		UserID:    util.FormatUserID(ident.UserID),
		Details:   models.AuditDetails{"provider": s.identity.Name()},
	})

	return s.IssueCode(ctx, client, ident.UserID, req, scope)
}

// CleanupExpiredCodes purges codes past their expiry.
func (s *AuthorizationService) CleanupExpiredCodes() (int64, error) {
	return s.store.DeleteExpiredAuthorizationCodes()
}

// verifyPKCE checks a code verifier against the challenge recorded at
// authorization time.
func verifyPKCE(code *models.AuthorizationCode, verifier string) bool {
	if !code.HasPKCE() {
		return true
	}
	if verifier == "" {
		return false
	}

	switch code.CodeChallengeMethod {
	case models.CodeChallengeMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(code.CodeChallenge)) == 1
	case models.CodeChallengeMethodPlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(code.CodeChallenge)) == 1
	default:
		return false
	}
}

// scopeSubset reports whether every scope in requested is present in allowed.
// An empty allowed set permits nothing.
func scopeSubset(requested, allowed string) bool {
	allowedSet := util.Fields(allowed)
	for s := range util.Fields(requested) {
		if _, ok := allowedSet[s]; !ok {
			return false
		}
	}
	return true
}
