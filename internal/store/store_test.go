package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-authcore/authcore/internal/models"
	"github.com/go-authcore/authcore/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestClient(t *testing.T, s *Store, clientID string) *models.OAuthClient {
	t.Helper()
	client := &models.OAuthClient{
		ClientID:   clientID,
		Name:       "Test Client",
		ClientType: models.ClientTypeConfidential,
		GrantTypes: "authorization_code refresh_token",
		Scopes:     "openid profile email",
		IsActive:   true,
		RedirectURIs: []models.RedirectURI{
			{URI: "https://app.example.com/callback"},
		},
	}
	require.NoError(t, s.CreateClient(client))
	return client
}

func createTestRefreshToken(t *testing.T, s *Store, plaintext string, clientID, userID uint) *models.RefreshToken {
	t.Helper()
	token := &models.RefreshToken{
		TokenHash:   util.SHA256Hex(plaintext),
		TokenPrefix: util.TokenPrefix(plaintext, 8),
		ClientID:    clientID,
		UserID:      userID,
		Scopes:      "openid",
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, s.CreateRefreshToken(token))
	return token
}

func TestHealth(t *testing.T) {
	s := setupTestStore(t)
	assert.NoError(t, s.Health(context.Background()))
}

func TestCreateClientConflict(t *testing.T) {
	s := setupTestStore(t)
	createTestClient(t, s, "dup-client")

	err := s.CreateClient(&models.OAuthClient{ClientID: "dup-client", Name: "Again"})
	assert.ErrorIs(t, err, ErrClientIDConflict)
}

func TestGetActiveClientByClientID(t *testing.T) {
	s := setupTestStore(t)
	client := createTestClient(t, s, "active-client")

	found, err := s.GetActiveClientByClientID("active-client")
	require.NoError(t, err)
	assert.Equal(t, client.ID, found.ID)
	require.Len(t, found.RedirectURIs, 1)
	assert.Equal(t, "https://app.example.com/callback", found.RedirectURIs[0].URI)

	// Deactivation hides the client from the hot path
	require.NoError(t, s.DeactivateClient("active-client"))
	_, err = s.GetActiveClientByClientID("active-client")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// But the admin lookup still sees it
	found, err = s.GetClientByClientID("active-client")
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}

func TestDeactivateClientIdempotency(t *testing.T) {
	s := setupTestStore(t)
	createTestClient(t, s, "gone-client")

	require.NoError(t, s.DeactivateClient("gone-client"))
	assert.ErrorIs(t, s.DeactivateClient("gone-client"), ErrRecordNotFound)
	assert.ErrorIs(t, s.DeactivateClient("never-existed"), ErrRecordNotFound)
}

func TestRemoveRedirectURI(t *testing.T) {
	s := setupTestStore(t)
	client := createTestClient(t, s, "redirect-client")

	uri := client.RedirectURIs[0]
	require.NoError(t, s.RemoveRedirectURI(client.ID, uri.ID))
	assert.ErrorIs(t, s.RemoveRedirectURI(client.ID, uri.ID), ErrRecordNotFound)
}

func TestMarkAuthorizationCodeUsed(t *testing.T) {
	s := setupTestStore(t)
	client := createTestClient(t, s, "code-client")

	code := &models.AuthorizationCode{
		CodeHash:    util.SHA256Hex("plaintext-code"),
		CodePrefix:  "plaintex",
		ClientID:    client.ID,
		UserID:      1,
		RedirectURI: "https://app.example.com/callback",
		Scopes:      "openid",
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, s.CreateAuthorizationCode(code))

	// First redemption wins
	require.NoError(t, s.MarkAuthorizationCodeUsed(code.ID))

	// Every subsequent attempt loses
	assert.ErrorIs(t, s.MarkAuthorizationCodeUsed(code.ID), ErrAuthCodeAlreadyUsed)

	stored, err := s.GetAuthorizationCodeByHash(code.CodeHash)
	require.NoError(t, err)
	assert.True(t, stored.IsUsed())
}

func TestMarkAuthorizationCodeUsedConcurrent(t *testing.T) {
	s := setupTestStore(t)
	client := createTestClient(t, s, "race-code-client")

	code := &models.AuthorizationCode{
		CodeHash:    util.SHA256Hex("contested-code"),
		CodePrefix:  "conteste",
		ClientID:    client.ID,
		UserID:      1,
		RedirectURI: "https://app.example.com/callback",
		Scopes:      "openid",
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, s.CreateAuthorizationCode(code))

	// Two redemptions race on the same code; the conditional update
	// guarantees exactly one winner.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- s.MarkAuthorizationCodeUsed(code.ID)
		}()
	}

	var wins, losses int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			wins++
		default:
			assert.ErrorIs(t, err, ErrAuthCodeAlreadyUsed)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
}

func TestRotateRefreshToken(t *testing.T) {
	s := setupTestStore(t)
	client := createTestClient(t, s, "rotate-client")

	old := createTestRefreshToken(t, s, "old-token-value", client.ID, 1)
	successor := &models.RefreshToken{
		TokenHash:   util.SHA256Hex("new-token-value"),
		TokenPrefix: "new-toke",
		ClientID:    client.ID,
		UserID:      1,
		Scopes:      "openid",
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	}

	require.NoError(t, s.RotateRefreshToken(old, successor))

	stored, err := s.GetRefreshTokenByHash(old.TokenHash)
	require.NoError(t, err)
	assert.True(t, stored.Revoked)
	assert.Equal(t, models.RevokeReasonRotated, stored.RevokedReason)
	assert.Equal(t, successor.TokenHash, stored.ReplacedByHash)
	assert.NotNil(t, stored.RevokedAt)

	// A concurrent rotation of the same token must fail, and must not
	// insert a second successor.
	again := &models.RefreshToken{
		TokenHash: util.SHA256Hex("racing-token-value"),
		ClientID:  client.ID,
		UserID:    1,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	assert.ErrorIs(t, s.RotateRefreshToken(old, again), ErrRefreshTokenRotated)
	_, err = s.GetRefreshTokenByHash(again.TokenHash)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRevokeChainFrom(t *testing.T) {
	s := setupTestStore(t)
	client := createTestClient(t, s, "chain-client")

	// Build a rotation chain t1 -> t2 -> t3
	t1 := createTestRefreshToken(t, s, "chain-token-1", client.ID, 7)
	t2 := &models.RefreshToken{
		TokenHash: util.SHA256Hex("chain-token-2"),
		ClientID:  client.ID, UserID: 7,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, s.RotateRefreshToken(t1, t2))
	t3 := &models.RefreshToken{
		TokenHash: util.SHA256Hex("chain-token-3"),
		ClientID:  client.ID, UserID: 7,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, s.RotateRefreshToken(t2, t3))

	// Walking from the retired root revokes the live tail
	revoked, err := s.RevokeChainFrom(t1.TokenHash, models.RevokeReasonReuseDetected, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, revoked, "only t3 was still live")

	tail, err := s.GetRefreshTokenByHash(t3.TokenHash)
	require.NoError(t, err)
	assert.True(t, tail.Revoked)
	assert.Equal(t, models.RevokeReasonReuseDetected, tail.RevokedReason)

	// Second walk is a no-op
	revoked, err = s.RevokeChainFrom(t1.TokenHash, models.RevokeReasonReuseDetected, 100)
	require.NoError(t, err)
	assert.Zero(t, revoked)
}

func TestRevokeChainFromBoundedDepth(t *testing.T) {
	s := setupTestStore(t)
	client := createTestClient(t, s, "bound-client")

	prev := createTestRefreshToken(t, s, "bound-token-0", client.ID, 2)
	for i := 1; i <= 5; i++ {
		next := &models.RefreshToken{
			TokenHash: util.SHA256Hex(fmt.Sprintf("bound-token-%d", i)),
			ClientID:  client.ID, UserID: 2,
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}
		require.NoError(t, s.RotateRefreshToken(prev, next))
		prev = next
	}

	// Depth 3 stops before reaching the live tail
	revoked, err := s.RevokeChainFrom(util.SHA256Hex("bound-token-0"), models.RevokeReasonCascade, 3)
	require.NoError(t, err)
	assert.Zero(t, revoked)

	tail, err := s.GetRefreshTokenByHash(prev.TokenHash)
	require.NoError(t, err)
	assert.False(t, tail.Revoked)
}

func TestRevokeAllForUser(t *testing.T) {
	s := setupTestStore(t)
	clientA := createTestClient(t, s, "logout-client-a")
	clientB := createTestClient(t, s, "logout-client-b")

	createTestRefreshToken(t, s, "user9-token-a", clientA.ID, 9)
	createTestRefreshToken(t, s, "user9-token-b", clientB.ID, 9)
	other := createTestRefreshToken(t, s, "user10-token", clientA.ID, 10)

	count, err := s.RevokeAllForUser(9, models.RevokeReasonLogout)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "both clients' tokens revoked")

	// Unrelated user untouched
	stored, err := s.GetRefreshTokenByHash(other.TokenHash)
	require.NoError(t, err)
	assert.False(t, stored.Revoked)
}

func TestGetUserClaims(t *testing.T) {
	s := setupTestStore(t)

	readPerm := models.Permission{Key: "orders:read", IsActive: true}
	writePerm := models.Permission{Key: "orders:write", IsActive: true}
	dormant := models.Permission{Key: "orders:delete", IsActive: false}

	user := &models.User{
		Username: "claims-user",
		Email:    "claims@example.com",
		IsActive: true,
		Roles: []models.Role{
			{Name: "viewer", IsActive: true, Permissions: []models.Permission{readPerm}},
			{Name: "editor", IsActive: true, Permissions: []models.Permission{writePerm, dormant}},
			{Name: "legacy", IsActive: false, Permissions: []models.Permission{{Key: "legacy:all", IsActive: true}}},
		},
	}
	require.NoError(t, s.CreateUser(user))

	roles, permissions, err := s.GetUserClaims(user.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"editor", "viewer"}, roles, "sorted, inactive role excluded")
	assert.Equal(t, []string{"orders:read", "orders:write"}, permissions,
		"sorted, inactive permission and inactive role's grants excluded")
}

func TestGetUserClaimsNoRoles(t *testing.T) {
	s := setupTestStore(t)
	user := &models.User{Username: "bare-user", Email: "bare@example.com", IsActive: true}
	require.NoError(t, s.CreateUser(user))

	roles, permissions, err := s.GetUserClaims(user.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.Empty(t, permissions)
}

func TestDeleteExpiredAuthorizationCodes(t *testing.T) {
	s := setupTestStore(t)
	client := createTestClient(t, s, "purge-client")

	expired := &models.AuthorizationCode{
		CodeHash: util.SHA256Hex("expired-code"), ClientID: client.ID, UserID: 1,
		RedirectURI: "https://app.example.com/callback",
		ExpiresAt:   time.Now().Add(-time.Hour),
	}
	live := &models.AuthorizationCode{
		CodeHash: util.SHA256Hex("live-code"), ClientID: client.ID, UserID: 1,
		RedirectURI: "https://app.example.com/callback",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateAuthorizationCode(expired))
	require.NoError(t, s.CreateAuthorizationCode(live))

	purged, err := s.DeleteExpiredAuthorizationCodes()
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = s.GetAuthorizationCodeByHash(live.CodeHash)
	assert.NoError(t, err)
}

func TestAuditLogBatchAndFilters(t *testing.T) {
	s := setupTestStore(t)

	entries := []models.AuditLog{
		{EventType: models.EventTokenIssued, Severity: models.SeverityInfo, ClientID: "c1", UserID: "1"},
		{EventType: models.EventTokenReuse, Severity: models.SeverityCritical, ClientID: "c1", UserID: "2"},
		{EventType: models.EventLoginFailure, Severity: models.SeverityWarning, ClientID: "c2", UserID: "2"},
	}
	require.NoError(t, s.CreateAuditLogs(entries))

	got, page, err := s.ListAuditLogs(
		AuditLogFilters{ClientID: "c1"},
		NewPaginationParams(1, 10, ""),
	)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int64(2), page.Total)

	got, _, err = s.ListAuditLogs(
		AuditLogFilters{Severity: models.SeverityCritical},
		NewPaginationParams(1, 10, ""),
	)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.EventTokenReuse, got[0].EventType)
}

// TestPostgresStore runs the critical concurrency paths against a real
// PostgreSQL instance. Requires Docker; skipped in short mode.
func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Skipf("docker not available: %v", r)
		}
	}()

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("authcore_test"),
		tcpostgres.WithUsername("authcore"),
		tcpostgres.WithPassword("authcore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	client := createTestClient(t, s, "pg-client")

	code := &models.AuthorizationCode{
		CodeHash: util.SHA256Hex("pg-code"), ClientID: client.ID, UserID: 1,
		RedirectURI: "https://app.example.com/callback",
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, s.CreateAuthorizationCode(code))
	require.NoError(t, s.MarkAuthorizationCodeUsed(code.ID))
	assert.ErrorIs(t, s.MarkAuthorizationCodeUsed(code.ID), ErrAuthCodeAlreadyUsed)

	old := createTestRefreshToken(t, s, "pg-old-token", client.ID, 1)
	successor := &models.RefreshToken{
		TokenHash: util.SHA256Hex("pg-new-token"),
		ClientID:  client.ID, UserID: 1,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, s.RotateRefreshToken(old, successor))
	assert.ErrorIs(t, s.RotateRefreshToken(old, successor), ErrRefreshTokenRotated)
}
