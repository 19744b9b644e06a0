package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateClientSecret(t *testing.T) {
	client := &OAuthClient{ClientID: "test-client"}

	plaintext, err := client.GenerateClientSecret()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plaintext, "aco_"))
	assert.NotEmpty(t, client.ClientSecretHash)
	assert.NotEqual(t, plaintext, client.ClientSecretHash, "hash must not equal plaintext")

	// Secret validates against its own hash and nothing else
	assert.True(t, client.ValidateClientSecret(plaintext))
	assert.False(t, client.ValidateClientSecret(plaintext+"x"))
	assert.False(t, client.ValidateClientSecret(""))

	// Regeneration invalidates the old secret
	second, err := client.GenerateClientSecret()
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, second)
	assert.False(t, client.ValidateClientSecret(plaintext))
	assert.True(t, client.ValidateClientSecret(second))
}

func TestValidateClientSecretPublicClient(t *testing.T) {
	client := &OAuthClient{ClientID: "spa", ClientType: ClientTypePublic}
	assert.False(t, client.ValidateClientSecret("anything"), "no hash stored")
}

func TestAllowsGrantType(t *testing.T) {
	client := &OAuthClient{GrantTypes: "authorization_code refresh_token"}

	assert.True(t, client.AllowsGrantType("authorization_code"))
	assert.True(t, client.AllowsGrantType("refresh_token"))
	assert.False(t, client.AllowsGrantType("client_credentials"))
	assert.False(t, client.AllowsGrantType(""))
}

func TestAllowsRedirectURI(t *testing.T) {
	client := &OAuthClient{
		RedirectURIs: []RedirectURI{
			{URI: "https://app.example.com/callback"},
			{URI: "https://app.example.com/alt", IsDefault: true},
		},
	}

	assert.True(t, client.AllowsRedirectURI("https://app.example.com/callback"))
	assert.False(t, client.AllowsRedirectURI("https://app.example.com/callback/"))
	assert.False(t, client.AllowsRedirectURI("https://app.example.com"))
	assert.False(t, client.AllowsRedirectURI("https://evil.example.com/callback"))
}
