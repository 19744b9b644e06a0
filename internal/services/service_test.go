package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/identity"
	"github.com/go-authcore/authcore/internal/metrics"
	"github.com/go-authcore/authcore/internal/models"
	"github.com/go-authcore/authcore/internal/store"
	"github.com/go-authcore/authcore/internal/token"
	"github.com/go-authcore/authcore/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The RFC 7636 appendix B vector.
const (
	testPKCEVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testPKCEChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

type testEnv struct {
	store   *store.Store
	config  *config.Config
	clients *ClientService
	authz   *AuthorizationService
	tokens  *TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Config{
		BaseURL:                "https://auth.example.com",
		JWTSecret:              "0123456789abcdef0123456789abcdef",
		AccessTokenExpiration:  time.Hour,
		RefreshTokenExpiration: 30 * 24 * time.Hour,
		AuthCodeExpiration:     10 * time.Minute,
		ClockSkewLeeway:        30 * time.Second,
		CleanupRetention:       30 * 24 * time.Hour,
	}

	signer, err := token.NewSigner(cfg.JWTSecret)
	require.NoError(t, err)
	provider := token.NewProvider(signer, cfg.Issuer(), cfg.ClockSkewLeeway)

	idp := identity.NewLocalProvider(s)
	audit := NewAuditService(s, false, 0)
	recorder := metrics.NewNoopMetrics()

	return &testEnv{
		store:   s,
		config:  cfg,
		clients: NewClientService(s, cfg, audit),
		authz:   NewAuthorizationService(s, cfg, idp, audit, recorder),
		tokens:  NewTokenService(s, cfg, provider, idp, audit, recorder),
	}
}

func (e *testEnv) createUser(t *testing.T) *models.User {
	t.Helper()

	user := &models.User{
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Example",
		IsActive: true,
	}
	require.NoError(t, user.SetPassword("correct horse"))
	require.NoError(t, e.store.CreateUser(user))
	return user
}

func (e *testEnv) createClient(t *testing.T, input CreateClientInput) (*models.OAuthClient, string) {
	t.Helper()

	if input.Name == "" {
		input.Name = "Test App"
	}
	if len(input.RedirectURIs) == 0 {
		input.RedirectURIs = []string{"https://app.example.com/callback"}
	}
	if len(input.Scopes) == 0 {
		input.Scopes = []string{"openid", "profile", "email"}
	}
	client, secret, err := e.clients.Create(context.Background(), input)
	require.NoError(t, err)
	return client, secret
}

func (e *testEnv) authRequest(client *models.OAuthClient) AuthorizationRequest {
	return AuthorizationRequest{
		ResponseType:        "code",
		ClientID:            client.ClientID,
		RedirectURI:         "https://app.example.com/callback",
		Scope:               "openid profile",
		State:               "xyz",
		Nonce:               "n-0S6_WzA2Mj",
		CodeChallenge:       testPKCEChallenge,
		CodeChallengeMethod: models.CodeChallengeMethodS256,
	}
}

// issueCode runs the full login flow and returns a redeemable code.
func (e *testEnv) issueCode(t *testing.T, client *models.OAuthClient, req AuthorizationRequest) string {
	t.Helper()

	code, err := e.authz.Login(context.Background(), "alice", "correct horse", req)
	require.NoError(t, err)
	return code
}

func TestClientServiceCreate(t *testing.T) {
	env := newTestEnv(t)

	client, secret := env.createClient(t, CreateClientInput{Name: "Web App"})
	assert.NotEmpty(t, client.ClientID)
	assert.True(t, client.ValidateClientSecret(secret))
	assert.Equal(t, models.ClientTypeConfidential, client.ClientType)
	assert.True(t, client.AllowsGrantType("authorization_code"))
	assert.True(t, client.AllowsGrantType("refresh_token"))
}

func TestClientServiceCreatePublicForcesPKCE(t *testing.T) {
	env := newTestEnv(t)

	client, secret, err := env.clients.Create(context.Background(), CreateClientInput{
		Name:         "SPA",
		ClientType:   models.ClientTypePublic,
		RedirectURIs: []string{"https://spa.example.com/cb"},
	})
	require.NoError(t, err)
	assert.True(t, client.RequirePKCE)
	assert.Empty(t, secret)
	assert.Empty(t, client.ClientSecretHash)
}

func TestClientServiceCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.clients.Create(ctx, CreateClientInput{Name: "X", ClientType: "weird"})
	assert.ErrorIs(t, err, ErrInvalidClientType)

	_, _, err = env.clients.Create(ctx, CreateClientInput{Name: "X"})
	assert.ErrorIs(t, err, ErrNoRedirectURI)

	_, _, err = env.clients.Create(ctx, CreateClientInput{
		Name:         "X",
		RedirectURIs: []string{"not a url"},
	})
	assert.ErrorIs(t, err, ErrMalformedRedirect)

	_, _, err = env.clients.Create(ctx, CreateClientInput{
		Name:         "X",
		RedirectURIs: []string{"https://x.example.com/cb#frag"},
	})
	assert.ErrorIs(t, err, ErrMalformedRedirect)

	_, _, err = env.clients.Create(ctx, CreateClientInput{
		Name:         "X",
		RedirectURIs: []string{"https://x.example.com/cb"},
		GrantTypes:   []string{"client_credentials"},
	})
	assert.ErrorIs(t, err, ErrInvalidGrantTypes)
}

func TestClientServiceRegenerateSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client, oldSecret := env.createClient(t, CreateClientInput{})

	newSecret, err := env.clients.RegenerateSecret(ctx, client.ClientID)
	require.NoError(t, err)
	assert.NotEqual(t, oldSecret, newSecret)

	reloaded, err := env.clients.Get(client.ClientID)
	require.NoError(t, err)
	assert.False(t, reloaded.ValidateClientSecret(oldSecret))
	assert.True(t, reloaded.ValidateClientSecret(newSecret))
}

func TestClientServiceRemoveLastRedirectURI(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client, _ := env.createClient(t, CreateClientInput{})
	err := env.clients.RemoveRedirectURI(ctx, client.ClientID, client.RedirectURIs[0].ID)
	assert.ErrorIs(t, err, ErrLastRedirectURI)

	added, err := env.clients.AddRedirectURI(ctx, client.ClientID, "https://app.example.com/alt")
	require.NoError(t, err)
	require.NoError(t, env.clients.RemoveRedirectURI(ctx, client.ClientID, added.ID))
}

func TestValidateRequestOrdering(t *testing.T) {
	env := newTestEnv(t)
	client, _ := env.createClient(t, CreateClientInput{})

	req := env.authRequest(client)
	req.ClientID = "nope"
	_, _, err := env.authz.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrUnknownClient)

	req = env.authRequest(client)
	req.RedirectURI = "https://evil.example.com/cb"
	_, _, err = env.authz.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrUnregisteredRedirect)

	req = env.authRequest(client)
	req.ResponseType = "token"
	_, _, err = env.authz.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrUnsupportedResponseType)

	req = env.authRequest(client)
	req.Scope = "openid admin"
	_, _, err = env.authz.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrScopeNotAllowed)
}

func TestValidateRequestRedirectIsByteExact(t *testing.T) {
	env := newTestEnv(t)
	client, _ := env.createClient(t, CreateClientInput{})

	req := env.authRequest(client)
	req.RedirectURI = "https://app.example.com/callback/"
	_, _, err := env.authz.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrUnregisteredRedirect)
}

func TestValidateRequestScopeDefaultsToOpenID(t *testing.T) {
	env := newTestEnv(t)
	client, _ := env.createClient(t, CreateClientInput{})

	req := env.authRequest(client)
	req.Scope = ""
	_, scope, err := env.authz.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "openid", scope)
}

func TestScopeSubset(t *testing.T) {
	assert.True(t, scopeSubset("openid", "openid profile email"))
	assert.True(t, scopeSubset("openid profile", "openid profile email"))
	assert.True(t, scopeSubset("", "openid"))
	assert.False(t, scopeSubset("openid admin", "openid profile email"))
	assert.False(t, scopeSubset("openid", ""))
}

func TestValidateRequestPKCERules(t *testing.T) {
	env := newTestEnv(t)

	public, _, err := env.clients.Create(context.Background(), CreateClientInput{
		Name:         "SPA",
		ClientType:   models.ClientTypePublic,
		RedirectURIs: []string{"https://app.example.com/callback"},
		Scopes:       []string{"openid"},
	})
	require.NoError(t, err)

	req := env.authRequest(public)
	req.Scope = "openid"
	req.CodeChallenge = ""
	req.CodeChallengeMethod = ""
	_, _, err = env.authz.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrPKCERequired)

	req = env.authRequest(public)
	req.Scope = "openid"
	req.CodeChallengeMethod = "plain"
	_, _, err = env.authz.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrInvalidChallengeMethod)

	env.config.PKCEAllowPlain = true
	_, _, err = env.authz.ValidateRequest(req)
	assert.NoError(t, err)
}

func TestLoginIssuesRedeemableCode(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	assert.Len(t, code, 64)

	resp, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEmpty(t, resp.IDToken)
	assert.Equal(t, "openid profile", resp.Scope)

	claims, err := env.tokens.ValidateBearer("Bearer " + resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, client.ClientID, claims.ClientID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})

	_, err := env.authz.Login(context.Background(), "alice", "wrong", env.authRequest(client))
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestExchangeRejectsWrongPKCEVerifier(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	_, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", "not-the-verifier")
	assert.ErrorIs(t, err, ErrPKCEVerification)
}

func TestExchangeRejectsRedirectMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	_, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/other", testPKCEVerifier)
	assert.ErrorIs(t, err, ErrRedirectMismatch)
}

func TestExchangeRejectsForeignClient(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	other, _ := env.createClient(t, CreateClientInput{Name: "Other App"})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	_, err := env.tokens.ExchangeAuthorizationCode(ctx, other, code,
		"https://app.example.com/callback", testPKCEVerifier)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestExchangeReplayRevokesTokenFamily(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	resp, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	// Rotate once so the family has a descendant.
	rotated, err := env.tokens.RefreshAccessToken(ctx, client, resp.RefreshToken, "")
	require.NoError(t, err)

	// Replaying the code must kill the whole family.
	_, err = env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	assert.ErrorIs(t, err, ErrCodeReplayed)

	_, err = env.tokens.RefreshAccessToken(ctx, client, rotated.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	first, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	second, err := env.tokens.RefreshAccessToken(ctx, client, first.RefreshToken, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEmpty(t, second.AccessToken)

	// The old token is spent.
	_, err = env.tokens.RefreshAccessToken(ctx, client, first.RefreshToken, "")
	assert.ErrorIs(t, err, ErrRefreshTokenReused)
}

func TestRefreshReuseRevokesDescendants(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	first, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	second, err := env.tokens.RefreshAccessToken(ctx, client, first.RefreshToken, "")
	require.NoError(t, err)
	third, err := env.tokens.RefreshAccessToken(ctx, client, second.RefreshToken, "")
	require.NoError(t, err)

	// Reusing the first token revokes the live tail too.
	_, err = env.tokens.RefreshAccessToken(ctx, client, first.RefreshToken, "")
	assert.ErrorIs(t, err, ErrRefreshTokenReused)

	_, err = env.tokens.RefreshAccessToken(ctx, client, third.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshConcurrentReuseRevokesWinnerSuccessor(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	first, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	// A second request reads the token row before the winner rotates it; its
	// copy has no successor hash yet.
	stale, err := env.store.GetRefreshTokenByHash(util.SHA256Hex(first.RefreshToken))
	require.NoError(t, err)
	require.Empty(t, stale.ReplacedByHash)

	winner, err := env.tokens.RefreshAccessToken(ctx, client, first.RefreshToken, "")
	require.NoError(t, err)

	// The loser's rotation fails and it falls into reuse handling with the
	// stale copy. The cascade must still reach the winner's successor.
	err = env.tokens.handleTokenReuse(ctx, client, stale)
	assert.ErrorIs(t, err, ErrRefreshTokenReused)

	_, err = env.tokens.RefreshAccessToken(ctx, client, winner.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	resp, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	err = env.store.DB().Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("is_active", false).Error
	require.NoError(t, err)

	_, err = env.tokens.RefreshAccessToken(ctx, client, resp.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestExchangeRejectsDeactivatedUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))

	err := env.store.DB().Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("is_active", false).Error
	require.NoError(t, err)

	_, err = env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestRefreshScopeNarrowing(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	first, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	narrowed, err := env.tokens.RefreshAccessToken(ctx, client, first.RefreshToken, "openid")
	require.NoError(t, err)
	assert.Equal(t, "openid", narrowed.Scope)

	// Widening past the original grant is refused.
	_, err = env.tokens.RefreshAccessToken(ctx, client, narrowed.RefreshToken, "openid profile email")
	assert.ErrorIs(t, err, ErrScopeExceedsGrant)
}

func TestRefreshRejectsForeignClient(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	other, _ := env.createClient(t, CreateClientInput{Name: "Other App"})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	resp, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	_, err = env.tokens.RefreshAccessToken(ctx, other, resp.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	resp, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	require.NoError(t, env.tokens.Revoke(ctx, client, resp.RefreshToken, ""))
	require.NoError(t, env.tokens.Revoke(ctx, client, resp.RefreshToken, ""))
	require.NoError(t, env.tokens.Revoke(ctx, client, "completely-unknown", ""))

	_, err = env.tokens.RefreshAccessToken(ctx, client, resp.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeIgnoresForeignClient(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	other, _ := env.createClient(t, CreateClientInput{Name: "Other App"})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	resp, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	// Revocation by the wrong client still answers success but leaves the
	// token usable.
	require.NoError(t, env.tokens.Revoke(ctx, other, resp.RefreshToken, ""))
	_, err = env.tokens.RefreshAccessToken(ctx, client, resp.RefreshToken, "")
	assert.NoError(t, err)
}

func TestIntrospect(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	resp, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	t.Run("refresh token", func(t *testing.T) {
		result := env.tokens.Introspect(ctx, client, resp.RefreshToken, "")
		assert.True(t, result.Active)
		assert.Equal(t, "refresh_token", result.TokenType)
		assert.Equal(t, client.ClientID, result.ClientID)
	})

	t.Run("access token with hint", func(t *testing.T) {
		result := env.tokens.Introspect(ctx, client, resp.AccessToken, "access_token")
		assert.True(t, result.Active)
		assert.Equal(t, "Bearer", result.TokenType)
		assert.Equal(t, util.FormatUserID(user.ID), result.Sub)
	})

	t.Run("access token without hint falls through", func(t *testing.T) {
		result := env.tokens.Introspect(ctx, client, resp.AccessToken, "")
		assert.True(t, result.Active)
	})

	t.Run("unknown token", func(t *testing.T) {
		result := env.tokens.Introspect(ctx, client, "garbage", "")
		assert.False(t, result.Active)
		assert.Empty(t, result.Scope)
	})

	t.Run("revoked refresh token", func(t *testing.T) {
		require.NoError(t, env.tokens.Revoke(ctx, client, resp.RefreshToken, ""))
		result := env.tokens.Introspect(ctx, client, resp.RefreshToken, "")
		assert.False(t, result.Active)
	})
}

func TestLogoutRevokesAcrossClients(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t)
	client, _ := env.createClient(t, CreateClientInput{})
	other, _ := env.createClient(t, CreateClientInput{Name: "Other App"})
	ctx := context.Background()

	code := env.issueCode(t, client, env.authRequest(client))
	resp, err := env.tokens.ExchangeAuthorizationCode(ctx, client, code,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	otherCode := env.issueCode(t, other, env.authRequest(other))
	otherResp, err := env.tokens.ExchangeAuthorizationCode(ctx, other, otherCode,
		"https://app.example.com/callback", testPKCEVerifier)
	require.NoError(t, err)

	revoked, err := env.tokens.Logout(ctx, resp.IDToken)
	require.NoError(t, err)
	assert.EqualValues(t, 2, revoked)

	_, err = env.tokens.RefreshAccessToken(ctx, client, resp.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = env.tokens.RefreshAccessToken(ctx, other, otherResp.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogoutRejectsForeignIDToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.tokens.Logout(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidIDTokenHint)
}

func TestVerifyPKCEVector(t *testing.T) {
	code := &models.AuthorizationCode{
		CodeChallenge:       testPKCEChallenge,
		CodeChallengeMethod: models.CodeChallengeMethodS256,
	}
	assert.True(t, verifyPKCE(code, testPKCEVerifier))
	assert.False(t, verifyPKCE(code, testPKCEVerifier+"x"))
	assert.False(t, verifyPKCE(code, ""))

	plain := &models.AuthorizationCode{
		CodeChallenge:       "plain-value",
		CodeChallengeMethod: models.CodeChallengeMethodPlain,
	}
	assert.True(t, verifyPKCE(plain, "plain-value"))
	assert.False(t, verifyPKCE(plain, "other"))

	none := &models.AuthorizationCode{}
	assert.True(t, verifyPKCE(none, ""))
}
