package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-authcore/authcore/internal/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestHTTPProvider creates a provider with retries disabled for
// predictable test behavior.
func newTestHTTPProvider(t *testing.T, baseURL string) *HTTPProvider {
	t.Helper()
	retryClient, err := client.CreateRetryClient(
		"simple", "test-secret",
		10*time.Second,
		false,
		0, // no retries
		time.Second, 10*time.Second,
		"X-API-Secret",
	)
	require.NoError(t, err)
	return NewHTTPProvider(baseURL, retryClient)
}

func TestHTTPProviderAuthenticateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/authenticate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-secret", r.Header.Get("X-API-Secret"))

		var req apiAuthRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.Login)
		assert.Equal(t, "s3cret", req.Password)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiIdentityResponse{
			Success:     true,
			UserID:      42,
			Username:    "alice",
			Email:       "alice@example.com",
			FullName:    "Alice Example",
			Roles:       []string{"editor"},
			Permissions: []string{"orders:read", "orders:write"},
		})
	}))
	defer server.Close()

	p := newTestHTTPProvider(t, server.URL)
	id, err := p.Authenticate(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	assert.Equal(t, uint(42), id.UserID)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, []string{"editor"}, id.Roles)
	assert.Equal(t, []string{"orders:read", "orders:write"}, id.Permissions)
}

func TestHTTPProviderAuthenticateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := newTestHTTPProvider(t, server.URL)
	_, err := p.Authenticate(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHTTPProviderAuthenticateFailureFlag(t *testing.T) {
	// 200 with success=false still counts as rejected credentials
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiIdentityResponse{Success: false, Message: "locked"})
	}))
	defer server.Close()

	p := newTestHTTPProvider(t, server.URL)
	_, err := p.Authenticate(context.Background(), "alice", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHTTPProviderAuthenticateInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer server.Close()

	p := newTestHTTPProvider(t, server.URL)
	_, err := p.Authenticate(context.Background(), "alice", "s3cret")
	assert.ErrorIs(t, err, ErrAPIInvalidResp)
}

func TestHTTPProviderAuthenticateMissingUserID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiIdentityResponse{Success: true, Username: "ghost"})
	}))
	defer server.Close()

	p := newTestHTTPProvider(t, server.URL)
	_, err := p.Authenticate(context.Background(), "ghost", "s3cret")
	assert.ErrorIs(t, err, ErrAPIInvalidResp)
}

func TestHTTPProviderLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/lookup", r.URL.Path)

		var req apiLookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.UserID != 42 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiIdentityResponse{
			Success: true, UserID: 42, Username: "alice", Roles: []string{"editor"},
		})
	}))
	defer server.Close()

	p := newTestHTTPProvider(t, server.URL)

	id, err := p.Lookup(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)

	_, err = p.Lookup(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
