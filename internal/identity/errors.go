package identity

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")

	// HTTP API errors
	ErrAPIConnection  = errors.New("failed to connect to identity API")
	ErrAPIAuthFailed  = errors.New("identity API rejected credentials")
	ErrAPIInvalidResp = errors.New("invalid response from identity API")
)
