package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// CryptoRandomBytes returns n cryptographically secure random bytes.
func CryptoRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// CryptoRandomString returns a hex-encoded random string built from n random
// bytes. The result is 2*n characters long, so n=32 yields a 256-bit value.
func CryptoRandomString(n int) (string, error) {
	b, err := CryptoRandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SHA256Hex returns the hex-encoded SHA-256 digest of the input.
// Used to hash high-entropy opaque values (authorization codes, refresh
// tokens) before they touch the database. No salt is required because the
// inputs carry at least 256 bits of entropy.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TokenPrefix returns the first n characters of a token for diagnostics and
// audit trails. The prefix alone is not enough to reconstruct the token.
func TokenPrefix(token string, n int) string {
	if len(token) <= n {
		return token
	}
	return token[:n]
}
