package store

import "errors"

var (
	// ErrRecordNotFound is returned when a lookup matches nothing.
	ErrRecordNotFound = errors.New("record not found")

	// ErrClientIDConflict is returned when creating a client whose client_id
	// already exists.
	ErrClientIDConflict = errors.New("client_id already exists")

	// ErrUsernameConflict is returned when creating a user whose username or
	// email already exists.
	ErrUsernameConflict = errors.New("username or email already exists")

	// ErrAuthCodeAlreadyUsed is returned by MarkAuthorizationCodeUsed when the
	// conditional update matches no rows, meaning another request redeemed the
	// code first.
	ErrAuthCodeAlreadyUsed = errors.New("authorization code already used")

	// ErrRefreshTokenRotated is returned by RotateRefreshToken when the
	// conditional revoke matches no rows, meaning the token was already
	// rotated or revoked by a concurrent request.
	ErrRefreshTokenRotated = errors.New("refresh token already rotated or revoked")
)
