package token

import "errors"

var (
	// ErrTokenGeneration indicates signing failed.
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrInvalidToken indicates the token is malformed, has a bad signature
	// or was signed with an unexpected method.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token is past its expiry, beyond the
	// configured clock skew leeway.
	ErrExpiredToken = errors.New("token expired")

	// ErrWeakSecret indicates the signing secret is too short for HS256.
	ErrWeakSecret = errors.New("signing secret must be at least 32 bytes")
)
