package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/models"
	"github.com/go-authcore/authcore/internal/services"
	"github.com/go-authcore/authcore/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	// https://datatracker.ietf.org/doc/html/rfc6749#section-4.1
	GrantTypeAuthorizationCode = "authorization_code"
	// https://datatracker.ietf.org/doc/html/rfc6749#section-6
	GrantTypeRefreshToken = "refresh_token"
)

// tokenRequest is the union of parameters accepted by the token, revocation
// and introspection endpoints, from either a form or a JSON body.
type tokenRequest struct {
	GrantType     string `form:"grant_type"      json:"grant_type"`
	Code          string `form:"code"            json:"code"`
	RedirectURI   string `form:"redirect_uri"    json:"redirect_uri"`
	CodeVerifier  string `form:"code_verifier"   json:"code_verifier"`
	RefreshToken  string `form:"refresh_token"   json:"refresh_token"`
	Scope         string `form:"scope"           json:"scope"`
	ClientID      string `form:"client_id"       json:"client_id"`
	ClientSecret  string `form:"client_secret"   json:"client_secret"`
	Token         string `form:"token"           json:"token"`
	TokenTypeHint string `form:"token_type_hint" json:"token_type_hint"`
}

type TokenHandler struct {
	tokens *services.TokenService
	store  *store.Store
	config *config.Config
}

func NewTokenHandler(ts *services.TokenService, s *store.Store, cfg *config.Config) *TokenHandler {
	return &TokenHandler{tokens: ts, store: s, config: cfg}
}

// parseTokenRequest reads the request body as a form or, when the client
// sends application/json, as a JSON object.
func parseTokenRequest(c *gin.Context) (*tokenRequest, bool) {
	var req tokenRequest
	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, false
		}
		return &req, true
	}
	if err := c.ShouldBind(&req); err != nil {
		return nil, false
	}
	return &req, true
}

// authenticateClient resolves and verifies the caller. Basic credentials win
// over body credentials when both are present. Public clients authenticate by
// identity alone; their proof is the PKCE verifier checked during exchange.
func (h *TokenHandler) authenticateClient(c *gin.Context, req *tokenRequest) (*models.OAuthClient, bool) {
	clientID, clientSecret := req.ClientID, req.ClientSecret
	if id, secret, ok := c.Request.BasicAuth(); ok {
		// RFC 6749 section 2.3.1: Basic credentials are form-urlencoded.
		if decoded, err := url.QueryUnescape(id); err == nil {
			id = decoded
		}
		if decoded, err := url.QueryUnescape(secret); err == nil {
			secret = decoded
		}
		clientID, clientSecret = id, secret
	}

	if clientID == "" {
		h.invalidClient(c)
		return nil, false
	}

	client, err := h.store.GetActiveClientByClientID(clientID)
	if err != nil {
		h.invalidClient(c)
		return nil, false
	}

	if !client.IsPublic() && !client.ValidateClientSecret(clientSecret) {
		h.invalidClient(c)
		return nil, false
	}

	return client, true
}

func (h *TokenHandler) unauthorizedClient(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":             "unauthorized_client",
		"error_description": "Client is not allowed this grant type",
	})
}

func (h *TokenHandler) invalidClient(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="oauth", charset="UTF-8"`)
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":             "invalid_client",
		"error_description": "Client authentication failed",
	})
}

// Token godoc
//
//	@Summary		Exchange a grant for tokens
//	@Description	Redeem an authorization code or rotate a refresh token (RFC 6749). Accepts form or JSON bodies; client credentials via Basic auth or body.
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Accept			json
//	@Produce		json
//	@Param			grant_type		formData	string	true	"'authorization_code' or 'refresh_token'"
//	@Param			code			formData	string	false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string	false	"Redirect URI the code was issued against"
//	@Param			code_verifier	formData	string	false	"PKCE verifier"
//	@Param			refresh_token	formData	string	false	"Refresh token (refresh_token grant)"
//	@Param			scope			formData	string	false	"Narrowed scope (refresh_token grant)"
//	@Success		200				{object}	services.TokenResponse
//	@Failure		400				{object}	object{error=string,error_description=string}
//	@Failure		401				{object}	object{error=string,error_description=string}
//	@Router			/oauth/token [post]
func (h *TokenHandler) Token(c *gin.Context) {
	req, ok := parseTokenRequest(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Malformed request body",
		})
		return
	}

	client, ok := h.authenticateClient(c, req)
	if !ok {
		return
	}

	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		h.handleAuthorizationCodeGrant(c, client, req)
	case GrantTypeRefreshToken:
		h.handleRefreshTokenGrant(c, client, req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_grant_type",
			"error_description": "Supported grant types: authorization_code, refresh_token",
		})
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(c *gin.Context, client *models.OAuthClient, req *tokenRequest) {
	if !client.AllowsGrantType(GrantTypeAuthorizationCode) {
		h.unauthorizedClient(c)
		return
	}
	if req.Code == "" || req.RedirectURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "code and redirect_uri are required",
		})
		return
	}

	resp, err := h.tokens.ExchangeAuthorizationCode(
		c.Request.Context(), client, req.Code, req.RedirectURI, req.CodeVerifier)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCode),
			errors.Is(err, services.ErrCodeExpired),
			errors.Is(err, services.ErrCodeReplayed),
			errors.Is(err, services.ErrRedirectMismatch),
			errors.Is(err, services.ErrPKCEVerification):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_grant",
				"error_description": "Authorization code is invalid, expired or already used",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Token issuance failed",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *TokenHandler) handleRefreshTokenGrant(c *gin.Context, client *models.OAuthClient, req *tokenRequest) {
	if !client.AllowsGrantType(GrantTypeRefreshToken) {
		h.unauthorizedClient(c)
		return
	}
	if req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "refresh_token is required",
		})
		return
	}

	resp, err := h.tokens.RefreshAccessToken(c.Request.Context(), client, req.RefreshToken, req.Scope)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRefreshToken),
			errors.Is(err, services.ErrRefreshTokenExpired),
			errors.Is(err, services.ErrRefreshTokenReused):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_grant",
				"error_description": "Refresh token is invalid, expired or revoked",
			})
		case errors.Is(err, services.ErrScopeExceedsGrant):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_scope",
				"error_description": "Requested scope exceeds the original grant",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Token refresh failed",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Revoke godoc
//
//	@Summary		Revoke a token
//	@Description	RFC 7009 revocation. Unknown tokens still answer 200.
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Accept			json
//	@Produce		json
//	@Param			token			formData	string	true	"Token to revoke"
//	@Param			token_type_hint	formData	string	false	"'refresh_token' or 'access_token'"
//	@Success		200				{object}	object{}
//	@Failure		401				{object}	object{error=string,error_description=string}
//	@Router			/oauth/revoke [post]
func (h *TokenHandler) Revoke(c *gin.Context) {
	req, ok := parseTokenRequest(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Malformed request body",
		})
		return
	}

	client, ok := h.authenticateClient(c, req)
	if !ok {
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), client, req.Token, req.TokenTypeHint); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Revocation failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// Introspect godoc
//
//	@Summary		Introspect a token
//	@Description	RFC 7662 introspection. Refresh tokens are checked first unless token_type_hint=access_token.
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Accept			json
//	@Produce		json
//	@Param			token			formData	string	true	"Token to introspect"
//	@Param			token_type_hint	formData	string	false	"'refresh_token' or 'access_token'"
//	@Success		200				{object}	services.IntrospectionResult
//	@Failure		401				{object}	object{error=string,error_description=string}
//	@Router			/oauth/introspect [post]
func (h *TokenHandler) Introspect(c *gin.Context) {
	req, ok := parseTokenRequest(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Malformed request body",
		})
		return
	}

	client, ok := h.authenticateClient(c, req)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.tokens.Introspect(c.Request.Context(), client, req.Token, req.TokenTypeHint))
}
