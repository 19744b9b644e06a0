package models

import (
	"time"
)

// PKCE challenge methods per RFC 7636.
const (
	CodeChallengeMethodS256  = "S256"
	CodeChallengeMethodPlain = "plain"
)

// AuthorizationCode is a single-use grant binding a user authorization to a
// client, redirect URI and scope set. Only the SHA-256 hash of the code is
// stored; the 8-char prefix exists for diagnostics.
type AuthorizationCode struct {
	ID                  uint   `gorm:"primarykey"`
	CodeHash            string `gorm:"uniqueIndex;not null"`
	CodePrefix          string `gorm:"size:8"`
	ClientID            uint   `gorm:"index;not null"`
	UserID              uint   `gorm:"index;not null"`
	RedirectURI         string `gorm:"not null"`
	Scopes              string
	CodeChallenge       string
	CodeChallengeMethod string `gorm:"default:S256"`
	Nonce               string
	ExpiresAt           time.Time `gorm:"index;not null"`
	UsedAt              *time.Time
	CreatedAt           time.Time
}

// IsExpired reports whether the code is past its expiry.
func (a *AuthorizationCode) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}

// IsUsed reports whether the code was already redeemed.
func (a *AuthorizationCode) IsUsed() bool {
	return a.UsedAt != nil
}

// HasPKCE reports whether a PKCE challenge was bound at authorization time.
func (a *AuthorizationCode) HasPKCE() bool {
	return a.CodeChallenge != ""
}
