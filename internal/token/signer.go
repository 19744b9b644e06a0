package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer holds the HS256 signing key. It is constructed once at bootstrap and
// never mutated afterwards, so concurrent signing needs no locking and a key
// cannot change underneath live validators.
type Signer struct {
	secret []byte
	keyID  string
}

// NewSigner creates a signer from the shared secret. The secret must carry at
// least 32 bytes.
func NewSigner(secret string) (*Signer, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecret
	}

	// Key id is a digest prefix, so JWKS can expose an identifier without
	// leaking anything about the key itself.
	sum := sha256.Sum256([]byte(secret))

	return &Signer{
		secret: []byte(secret),
		keyID:  "hs256-" + hex.EncodeToString(sum[:4]),
	}, nil
}

// KeyID returns the identifier published in JWKS and token headers.
func (s *Signer) KeyID() string {
	return s.keyID
}

// Sign produces a compact HS256 JWT for the given claims.
func (s *Signer) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = s.keyID

	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return signed, nil
}

// Keyfunc returns the verification callback for jwt.Parse. It pins the
// signing method to HMAC so an attacker cannot downgrade to "none" or swap
// in an asymmetric algorithm.
func (s *Signer) Keyfunc() jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}
}
