package services

import (
	"context"
	"errors"
	"time"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/identity"
	"github.com/go-authcore/authcore/internal/metrics"
	"github.com/go-authcore/authcore/internal/models"
	"github.com/go-authcore/authcore/internal/store"
	"github.com/go-authcore/authcore/internal/token"
	"github.com/go-authcore/authcore/internal/util"
)

// reuseCascadeDepth bounds the replaced_by_hash walk when a reuse cascade
// fires. A legitimate chain never gets near this; the bound only protects
// against corrupted data.
const reuseCascadeDepth = 100

var (
	ErrInvalidCode          = errors.New("authorization code is invalid")
	ErrCodeExpired          = errors.New("authorization code has expired")
	ErrCodeReplayed         = errors.New("authorization code was already redeemed")
	ErrRedirectMismatch     = errors.New("redirect URI does not match the authorization request")
	ErrPKCEVerification     = errors.New("PKCE verification failed")
	ErrInvalidRefreshToken  = errors.New("refresh token is invalid")
	ErrRefreshTokenExpired  = errors.New("refresh token has expired")
	ErrRefreshTokenReused   = errors.New("refresh token reuse detected")
	ErrScopeExceedsGrant    = errors.New("requested scope exceeds the original grant")
	ErrInvalidIDTokenHint   = errors.New("id_token_hint is not a token issued by this server")
)

// TokenResponse is the /oauth/token success payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// IntrospectionResult is the RFC 7662 response. Inactive tokens carry only
// the active flag.
type IntrospectionResult struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Iss       string `json:"iss,omitempty"`
	Jti       string `json:"jti,omitempty"`
}

// TokenService implements the token endpoint grants plus revocation,
// introspection and logout. Access tokens are stateless JWTs; refresh tokens
// are opaque, hashed at rest and rotated on every use.
type TokenService struct {
	store    *store.Store
	config   *config.Config
	provider *token.Provider
	identity identity.Provider
	audit    *AuditService
	metrics  metrics.Recorder
}

// NewTokenService creates a new token service.
func NewTokenService(
	s *store.Store,
	cfg *config.Config,
	provider *token.Provider,
	idp identity.Provider,
	audit *AuditService,
	recorder metrics.Recorder,
) *TokenService {
	return &TokenService{
		store:    s,
		config:   cfg,
		provider: provider,
		identity: idp,
		audit:    audit,
		metrics:  recorder,
	}
}

// ExchangeAuthorizationCode redeems a code for a token set. Redemption is
// single use: a second presentation revokes every token descended from the
// first redemption.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	client *models.OAuthClient,
	code, redirectURI, codeVerifier string,
) (*TokenResponse, error) {
	record, err := s.store.GetAuthorizationCodeByHash(util.SHA256Hex(code))
	if errors.Is(err, store.ErrRecordNotFound) {
		s.metrics.RecordAuthCodeExchange("invalid")
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}

	// A code bound to another client is indistinguishable from an unknown
	// code, so nothing leaks about other clients' codes.
	if record.ClientID != client.ID {
		s.metrics.RecordAuthCodeExchange("invalid")
		return nil, ErrInvalidCode
	}

	if record.IsUsed() {
		return nil, s.handleCodeReplay(ctx, client, record)
	}
	if record.IsExpired() {
		s.metrics.RecordAuthCodeExchange("expired")
		return nil, ErrCodeExpired
	}
	if record.RedirectURI != redirectURI {
		s.metrics.RecordAuthCodeExchange("invalid")
		return nil, ErrRedirectMismatch
	}
	if !verifyPKCE(record, codeVerifier) {
		s.metrics.RecordAuthCodeExchange("pkce_failed")
		return nil, ErrPKCEVerification
	}

	// The conditional update is the single-use gate. Losing the race means
	// another request redeemed this code between our read and now.
	if err := s.store.MarkAuthorizationCodeUsed(record.ID); err != nil {
		if errors.Is(err, store.ErrAuthCodeAlreadyUsed) {
			return nil, s.handleCodeReplay(ctx, client, record)
		}
		return nil, err
	}

	ident, err := s.identity.Lookup(ctx, record.UserID)
	if err != nil {
		// The user was deactivated or deleted after the code was issued.
		// The code is burned either way; the grant is simply invalid.
		if errors.Is(err, identity.ErrUserNotFound) {
			s.metrics.RecordAuthCodeExchange("invalid")
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	resp, refreshRecord, err := s.mintTokenSet(client, ident, record.Scopes, record.Nonce, "authorization_code", &record.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRefreshToken(refreshRecord); err != nil {
		return nil, err
	}

	s.metrics.RecordAuthCodeExchange("success")
	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventAuthCodeExchanged,
		ClientID:  client.ClientID,
		UserID:    util.FormatUserID(record.UserID),
		Details: models.AuditDetails{
			"code_prefix":          record.CodePrefix,
			"refresh_token_prefix": refreshRecord.TokenPrefix,
			"scope":                record.Scopes,
		},
	})

	return resp, nil
}

// handleCodeReplay fires the cascade for a replayed authorization code: the
// refresh token family minted from the first redemption is revoked end to end.
func (s *TokenService) handleCodeReplay(
	ctx context.Context,
	client *models.OAuthClient,
	record *models.AuthorizationCode,
) error {
	s.metrics.RecordAuthCodeExchange("replayed")

	revoked := 0
	root, err := s.store.GetRefreshTokenByCodeID(record.ID)
	if err == nil {
		revoked, err = s.store.RevokeChainFrom(root.TokenHash, models.RevokeReasonCascade, reuseCascadeDepth)
	}
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		s.metrics.RecordDatabaseQueryError("code_replay_cascade")
	}

	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventAuthCodeReplayed,
		Severity:  models.SeverityCritical,
		ClientID:  client.ClientID,
		UserID:    util.FormatUserID(record.UserID),
		Details: models.AuditDetails{
			"code_prefix":    record.CodePrefix,
			"tokens_revoked": revoked,
		},
	})

	return ErrCodeReplayed
}

// RefreshAccessToken rotates a refresh token and mints a fresh token set.
// Presenting an already rotated token is treated as theft: the whole
// descendant chain is revoked.
func (s *TokenService) RefreshAccessToken(
	ctx context.Context,
	client *models.OAuthClient,
	refreshToken, requestedScope string,
) (*TokenResponse, error) {
	record, err := s.store.GetRefreshTokenByHash(util.SHA256Hex(refreshToken))
	if errors.Is(err, store.ErrRecordNotFound) {
		s.metrics.RecordTokenRefresh(false)
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	if record.ClientID != client.ID {
		s.metrics.RecordTokenRefresh(false)
		return nil, ErrInvalidRefreshToken
	}

	if record.Revoked {
		if record.RevokedReason == models.RevokeReasonRotated {
			return nil, s.handleTokenReuse(ctx, client, record)
		}
		s.metrics.RecordTokenRefresh(false)
		return nil, ErrInvalidRefreshToken
	}
	if record.IsExpired() {
		s.metrics.RecordTokenRefresh(false)
		return nil, ErrRefreshTokenExpired
	}

	// Scope may only narrow relative to the original grant.
	scope := record.Scopes
	if requestedScope != "" {
		if !scopeSubset(requestedScope, record.Scopes) {
			s.metrics.RecordTokenRefresh(false)
			return nil, ErrScopeExceedsGrant
		}
		scope = requestedScope
	}

	ident, err := s.identity.Lookup(ctx, record.UserID)
	if err != nil {
		// A token whose owner was deactivated or deleted is an invalid
		// grant, not a server fault.
		if errors.Is(err, identity.ErrUserNotFound) {
			s.metrics.RecordTokenRefresh(false)
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	resp, successor, err := s.mintTokenSet(client, ident, scope, "", "refresh_token", record.AuthorizationCodeID)
	if err != nil {
		return nil, err
	}

	if err := s.store.RotateRefreshToken(record, successor); err != nil {
		if errors.Is(err, store.ErrRefreshTokenRotated) {
			// Lost the rotation race: a concurrent request already
			// rotated this token, so this presentation is a reuse.
			return nil, s.handleTokenReuse(ctx, client, record)
		}
		return nil, err
	}

	s.metrics.RecordTokenRefresh(true)
	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventTokenRefreshed,
		ClientID:  client.ClientID,
		UserID:    util.FormatUserID(record.UserID),
		Details: models.AuditDetails{
			"old_token_prefix": record.TokenPrefix,
			"new_token_prefix": successor.TokenPrefix,
			"scope":            scope,
		},
	})

	return resp, nil
}

// handleTokenReuse revokes every descendant of the reused token. The token
// itself is already revoked; the cascade protects whatever was minted from it.
func (s *TokenService) handleTokenReuse(
	ctx context.Context,
	client *models.OAuthClient,
	record *models.RefreshToken,
) error {
	s.metrics.RecordTokenRefresh(false)
	s.metrics.RecordTokenReuseDetected()

	// Re-read the row: when this presentation lost a rotation race, the
	// in-memory record predates the winner's rotation and its
	// ReplacedByHash is still empty. The cascade has to start from the
	// successor the winner actually recorded.
	if current, err := s.store.GetRefreshTokenByHash(record.TokenHash); err == nil {
		record = current
	}

	revoked, err := s.store.RevokeChainFrom(record.ReplacedByHash, models.RevokeReasonReuseDetected, reuseCascadeDepth)
	if err != nil {
		s.metrics.RecordDatabaseQueryError("reuse_cascade")
	}

	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventTokenReuse,
		Severity:  models.SeverityCritical,
		ClientID:  client.ClientID,
		UserID:    util.FormatUserID(record.UserID),
		Details: models.AuditDetails{
			"token_prefix":   record.TokenPrefix,
			"tokens_revoked": revoked,
		},
	})

	return ErrRefreshTokenReused
}

// mintTokenSet builds the access token, successor refresh token record and,
// when the openid scope was granted, the ID token. The refresh record is
// returned unpersisted so code exchange and rotation can store it their own
// way.
func (s *TokenService) mintTokenSet(
	client *models.OAuthClient,
	ident *identity.Identity,
	scope, nonce, grantType string,
	codeID *uint,
) (*TokenResponse, *models.RefreshToken, error) {
	accessLifetime := s.accessTokenLifetime(client)

	start := time.Now()
	accessToken, _, err := s.provider.GenerateAccessToken(token.AccessTokenParams{
		UserID:      ident.UserID,
		ClientID:    client.ClientID,
		Scopes:      scope,
		Roles:       ident.Roles,
		Permissions: ident.Permissions,
		Lifetime:    accessLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	s.metrics.RecordTokenIssued("access", grantType, time.Since(start))

	refreshPlain, err := util.CryptoRandomString(32)
	if err != nil {
		return nil, nil, err
	}
	refreshRecord := &models.RefreshToken{
		TokenHash:           util.SHA256Hex(refreshPlain),
		TokenPrefix:         util.TokenPrefix(refreshPlain, 8),
		ClientID:            client.ID,
		UserID:              ident.UserID,
		Scopes:              scope,
		AuthorizationCodeID: codeID,
		ExpiresAt:           time.Now().Add(s.refreshTokenLifetime(client)),
	}

	resp := &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(accessLifetime.Seconds()),
		RefreshToken: refreshPlain,
		Scope:        scope,
	}

	if _, ok := token.ScopeSet(scope)["openid"]; ok {
		idToken, err := s.provider.GenerateIDToken(token.IDTokenParams{
			Subject:     ident.UserID,
			Audience:    client.ClientID,
			Nonce:       nonce,
			AuthTime:    time.Now(),
			AccessToken: accessToken,
			Lifetime:    accessLifetime,
			Scopes:      scope,
			Username:    ident.Username,
			FullName:    ident.FullName,
			Email:       ident.Email,
		})
		if err != nil {
			return nil, nil, err
		}
		resp.IDToken = idToken
	}

	return resp, refreshRecord, nil
}

// Revoke implements RFC 7009. Unknown tokens and tokens of other clients are
// silently accepted; only storage failures surface as errors.
func (s *TokenService) Revoke(ctx context.Context, client *models.OAuthClient, tokenValue, hint string) error {
	if tokenValue == "" {
		return nil
	}

	// Access tokens are stateless JWTs; there is nothing to revoke for
	// them. Everything else is treated as a refresh token.
	if hint == "access_token" {
		if _, err := s.provider.ValidateAccessToken(tokenValue); err == nil {
			return nil
		}
	}

	record, err := s.store.GetRefreshTokenByHash(util.SHA256Hex(tokenValue))
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if record.ClientID != client.ID {
		return nil
	}

	if err := s.store.RevokeRefreshToken(record.ID, models.RevokeReasonClientRequest); err != nil {
		return err
	}
	if record.ReplacedByHash != "" {
		if _, err := s.store.RevokeChainFrom(record.ReplacedByHash, models.RevokeReasonCascade, reuseCascadeDepth); err != nil {
			return err
		}
	}

	s.metrics.RecordTokenRevoked("refresh", models.RevokeReasonClientRequest)
	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventTokenRevoked,
		ClientID:  client.ClientID,
		UserID:    util.FormatUserID(record.UserID),
		Details:   models.AuditDetails{"token_prefix": record.TokenPrefix},
	})

	return nil
}

// Introspect implements RFC 7662. Refresh tokens are checked first unless
// the caller hints access_token; JWT validation is the fallback either way.
func (s *TokenService) Introspect(ctx context.Context, client *models.OAuthClient, tokenValue, hint string) *IntrospectionResult {
	var result *IntrospectionResult
	if hint == "access_token" {
		result = s.introspectAccess(ctx, tokenValue)
		if result == nil {
			result = s.introspectRefresh(ctx, client, tokenValue)
		}
	} else {
		result = s.introspectRefresh(ctx, client, tokenValue)
		if result == nil {
			result = s.introspectAccess(ctx, tokenValue)
		}
	}

	if result == nil {
		result = &IntrospectionResult{Active: false}
	}
	s.metrics.RecordTokenIntrospection(result.Active)
	return result
}

func (s *TokenService) introspectRefresh(ctx context.Context, client *models.OAuthClient, tokenValue string) *IntrospectionResult {
	record, err := s.store.GetRefreshTokenByHash(util.SHA256Hex(tokenValue))
	if err != nil {
		return nil
	}
	// The token exists but belongs to another client or is dead: report
	// inactive rather than falling through to JWT parsing.
	if record.ClientID != client.ID || !record.IsActive() {
		return &IntrospectionResult{Active: false}
	}
	return &IntrospectionResult{
		Active:    true,
		Scope:     record.Scopes,
		ClientID:  client.ClientID,
		Username:  s.usernameFor(ctx, record.UserID),
		TokenType: "refresh_token",
		Exp:       record.ExpiresAt.Unix(),
		Iat:       record.CreatedAt.Unix(),
		Sub:       util.FormatUserID(record.UserID),
		Iss:       s.config.Issuer(),
	}
}

func (s *TokenService) introspectAccess(ctx context.Context, tokenValue string) *IntrospectionResult {
	claims, err := s.provider.ValidateAccessToken(tokenValue)
	if err != nil {
		return nil
	}
	return &IntrospectionResult{
		Active:    true,
		Scope:     claims.Scopes,
		ClientID:  claims.ClientID,
		Username:  s.usernameFor(ctx, claims.UserID),
		TokenType: "Bearer",
		Exp:       claims.ExpiresAt.Unix(),
		Iat:       claims.IssuedAt.Unix(),
		Sub:       util.FormatUserID(claims.UserID),
		Iss:       s.config.Issuer(),
		Jti:       claims.JTI,
	}
}

// usernameFor resolves the username claim best-effort; introspection still
// answers from the token alone when the identity lookup fails.
func (s *TokenService) usernameFor(ctx context.Context, userID uint) string {
	ident, err := s.identity.Lookup(ctx, userID)
	if err != nil {
		return ""
	}
	return ident.Username
}

// Logout revokes every refresh token belonging to the subject of the given
// ID token, across all clients.
func (s *TokenService) Logout(ctx context.Context, idTokenHint string) (int64, error) {
	userID, err := s.provider.SubjectFromToken(idTokenHint)
	if err != nil {
		return 0, ErrInvalidIDTokenHint
	}

	revoked, err := s.store.RevokeAllForUser(userID, models.RevokeReasonLogout)
	if err != nil {
		return 0, err
	}

	s.metrics.RecordLogout(int(revoked))
	s.audit.Log(ctx, AuditEntry{
		EventType: models.EventLogout,
		UserID:    util.FormatUserID(userID),
		Details:   models.AuditDetails{"tokens_revoked": revoked},
	})

	return revoked, nil
}

// ValidateBearer strips the Bearer prefix and validates the access token,
// recording validation metrics.
func (s *TokenService) ValidateBearer(header string) (*token.Claims, error) {
	start := time.Now()
	claims, err := s.provider.ValidateAccessToken(token.StripBearer(header))
	switch {
	case err == nil:
		s.metrics.RecordTokenValidation("success", time.Since(start))
	case errors.Is(err, token.ErrExpiredToken):
		s.metrics.RecordTokenValidation("expired", time.Since(start))
	default:
		s.metrics.RecordTokenValidation("invalid", time.Since(start))
	}
	return claims, err
}

// CleanupExpiredTokens purges refresh tokens past the retention window.
func (s *TokenService) CleanupExpiredTokens() (int64, error) {
	return s.store.DeleteExpiredRefreshTokens(s.config.CleanupRetention)
}

func (s *TokenService) accessTokenLifetime(client *models.OAuthClient) time.Duration {
	if client.AccessTokenLifetime > 0 {
		return time.Duration(client.AccessTokenLifetime) * time.Second
	}
	return s.config.AccessTokenExpiration
}

func (s *TokenService) refreshTokenLifetime(client *models.OAuthClient) time.Duration {
	if client.RefreshTokenLifetime > 0 {
		return time.Duration(client.RefreshTokenLifetime) * time.Second
	}
	return s.config.RefreshTokenExpiration
}
