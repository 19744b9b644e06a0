package models

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Client types per RFC 6749 section 2.1.
const (
	ClientTypeConfidential = "confidential"
	ClientTypePublic       = "public"
)

// clientSecretPrefix marks plaintext secrets so they are recognizable in
// configuration files and secret scanners.
const clientSecretPrefix = "aco_"

// OAuthClient is a registered relying party. The secret is stored as a bcrypt
// hash; the plaintext is returned exactly once, at creation or regeneration.
type OAuthClient struct {
	ID               uint   `gorm:"primarykey"`
	ClientID         string `gorm:"uniqueIndex;not null"`
	ClientSecretHash string
	Name             string `gorm:"not null"`
	ClientType       string `gorm:"default:confidential"`
	RequirePKCE      bool   `gorm:"default:false"`
	// Lifetimes in seconds; zero falls back to the server defaults.
	AccessTokenLifetime  int
	RefreshTokenLifetime int
	GrantTypes           string `gorm:"default:'authorization_code refresh_token'"`
	Scopes               string
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time

	RedirectURIs []RedirectURI `gorm:"foreignKey:ClientID;references:ID"`
}

// RedirectURI is one registered redirect target for a client. Matching
// against authorization requests is byte-exact.
type RedirectURI struct {
	ID        uint   `gorm:"primarykey"`
	ClientID  uint   `gorm:"index;not null"`
	URI       string `gorm:"not null"`
	IsDefault bool   `gorm:"default:false"`
	CreatedAt time.Time
}

// GenerateClientSecret creates a new random secret, stores its bcrypt hash on
// the client and returns the plaintext. The plaintext is never persisted.
func (c *OAuthClient) GenerateClientSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	encoder := base32.StdEncoding.WithPadding(base32.NoPadding)
	plaintext := clientSecretPrefix + strings.ToLower(encoder.EncodeToString(raw))

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	c.ClientSecretHash = string(hash)
	return plaintext, nil
}

// ValidateClientSecret checks a presented secret against the stored hash.
// Public clients have no usable secret and always fail this check.
func (c *OAuthClient) ValidateClientSecret(secret string) bool {
	if c.ClientSecretHash == "" || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.ClientSecretHash), []byte(secret)) == nil
}

// IsPublic reports whether the client is a public client.
func (c *OAuthClient) IsPublic() bool {
	return c.ClientType == ClientTypePublic
}

// AllowsGrantType reports whether the grant type is in the client's allow set.
func (c *OAuthClient) AllowsGrantType(grantType string) bool {
	for _, g := range strings.Fields(c.GrantTypes) {
		if g == grantType {
			return true
		}
	}
	return false
}

// AllowsRedirectURI reports whether uri exactly matches a registered
// redirect URI.
func (c *OAuthClient) AllowsRedirectURI(uri string) bool {
	for _, r := range c.RedirectURIs {
		if r.URI == uri {
			return true
		}
	}
	return false
}

// ScopeList returns the client's allowed scopes as a slice.
func (c *OAuthClient) ScopeList() []string {
	return strings.Fields(c.Scopes)
}
