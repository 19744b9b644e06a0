package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	retry "github.com/appleboy/go-httpretry"
)

// HTTPProvider delegates authentication and claim resolution to an external
// identity service over JSON HTTP. Requests are retried with exponential
// backoff; authentication headers are attached by the underlying client.
type HTTPProvider struct {
	baseURL     string
	retryClient *retry.Client
}

// NewHTTPProvider creates an identity provider backed by an external service.
func NewHTTPProvider(baseURL string, retryClient *retry.Client) *HTTPProvider {
	return &HTTPProvider{
		baseURL:     baseURL,
		retryClient: retryClient,
	}
}

// apiAuthRequest is the payload sent to POST {base}/authenticate.
type apiAuthRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// apiIdentityResponse is the identity document the service returns.
type apiIdentityResponse struct {
	Success     bool     `json:"success"`
	UserID      uint     `json:"user_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	FullName    string   `json:"full_name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Authenticate verifies credentials against the external service.
func (p *HTTPProvider) Authenticate(ctx context.Context, login, password string) (*Identity, error) {
	payload, err := json.Marshal(apiAuthRequest{Login: login, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := p.retryClient.Post(
		ctx,
		p.baseURL+"/authenticate",
		retry.WithBody("application/json", bytes.NewBuffer(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidCredentials
	}

	doc, err := p.decodeIdentity(resp)
	if err != nil {
		return nil, err
	}
	if !doc.Success {
		return nil, ErrInvalidCredentials
	}

	return doc.toIdentity()
}

// apiLookupRequest is the payload sent to POST {base}/users/lookup.
type apiLookupRequest struct {
	UserID uint `json:"user_id"`
}

// Lookup fetches the identity document for a known subject.
func (p *HTTPProvider) Lookup(ctx context.Context, userID uint) (*Identity, error) {
	payload, err := json.Marshal(apiLookupRequest{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := p.retryClient.Post(
		ctx,
		p.baseURL+"/users/lookup",
		retry.WithBody("application/json", bytes.NewBuffer(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUserNotFound
	}

	doc, err := p.decodeIdentity(resp)
	if err != nil {
		return nil, err
	}

	return doc.toIdentity()
}

// Name returns provider name for logging
func (p *HTTPProvider) Name() string {
	return "httpapi"
}

func (p *HTTPProvider) decodeIdentity(resp *http.Response) (*apiIdentityResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response", ErrAPIInvalidResp)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var doc apiIdentityResponse
		if err := json.Unmarshal(body, &doc); err == nil && doc.Message != "" {
			return nil, fmt.Errorf("%w: HTTP %d - %s", ErrAPIAuthFailed, resp.StatusCode, doc.Message)
		}
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("%w: HTTP %d - %s", ErrAPIInvalidResp, resp.StatusCode, preview)
	}

	var doc apiIdentityResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIInvalidResp, err)
	}
	return &doc, nil
}

func (d *apiIdentityResponse) toIdentity() (*Identity, error) {
	if d.UserID == 0 {
		return nil, fmt.Errorf("%w: missing user_id", ErrAPIInvalidResp)
	}
	return &Identity{
		UserID:      d.UserID,
		Username:    d.Username,
		Email:       d.Email,
		FullName:    d.FullName,
		Roles:       d.Roles,
		Permissions: d.Permissions,
	}, nil
}
