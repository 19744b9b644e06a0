package models

import (
	"strings"
	"time"
)

// Revocation reasons recorded on refresh tokens.
const (
	RevokeReasonRotated       = "rotated"
	RevokeReasonReuseDetected = "reuse_detected"
	RevokeReasonLogout        = "logout"
	RevokeReasonClientRequest = "client_request"
	RevokeReasonCascade       = "cascade"
)

// RefreshToken is an opaque long-lived credential. Only the SHA-256 hash is
// stored. Rotation links each token to its successor through ReplacedByHash,
// forming a forward chain that reuse detection walks to revoke descendants.
type RefreshToken struct {
	ID          uint   `gorm:"primarykey"`
	TokenHash   string `gorm:"uniqueIndex;not null"`
	TokenPrefix string `gorm:"size:8"`
	ClientID    uint   `gorm:"index;not null"`
	UserID      uint   `gorm:"index;not null"`
	Scopes      string
	// Link back to the authorization code that minted the family root.
	AuthorizationCodeID *uint
	ExpiresAt           time.Time `gorm:"index;not null"`
	Revoked             bool      `gorm:"default:false;index"`
	RevokedAt           *time.Time
	RevokedReason       string
	ReplacedByHash      string `gorm:"index"`
	CreatedAt           time.Time
	LastUsedAt          *time.Time
}

// IsExpired reports whether the token is past its expiry.
func (r *RefreshToken) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// IsActive reports whether the token can still be exchanged.
func (r *RefreshToken) IsActive() bool {
	return !r.Revoked && !r.IsExpired()
}

// ScopeList returns the token's scopes as a slice.
func (r *RefreshToken) ScopeList() []string {
	return strings.Fields(r.Scopes)
}
