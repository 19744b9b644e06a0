package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/identity"
	"github.com/go-authcore/authcore/internal/services"

	"github.com/gin-gonic/gin"
)

type OAuthHandler struct {
	authz  *services.AuthorizationService
	config *config.Config
}

func NewOAuthHandler(as *services.AuthorizationService, cfg *config.Config) *OAuthHandler {
	return &OAuthHandler{authz: as, config: cfg}
}

func authorizationRequestFromQuery(c *gin.Context) services.AuthorizationRequest {
	return services.AuthorizationRequest{
		ResponseType:        c.Query("response_type"),
		ClientID:            c.Query("client_id"),
		RedirectURI:         c.Query("redirect_uri"),
		Scope:               c.Query("scope"),
		State:               c.Query("state"),
		Nonce:               c.Query("nonce"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
	}
}

// Authorize godoc
//
//	@Summary		Start the authorization code flow
//	@Description	Validates the request and redirects the browser to the login UI. Client and redirect URI failures never redirect.
//	@Tags			OAuth
//	@Produce		json
//	@Param			response_type			query	string	true	"Must be 'code'"
//	@Param			client_id				query	string	true	"Client identifier"
//	@Param			redirect_uri			query	string	true	"Registered redirect URI, matched byte-exact"
//	@Param			scope					query	string	false	"Requested scope; defaults to the client's scopes"
//	@Param			state					query	string	false	"Opaque client state, echoed back"
//	@Param			nonce					query	string	false	"OpenID Connect nonce"
//	@Param			code_challenge			query	string	false	"PKCE challenge"
//	@Param			code_challenge_method	query	string	false	"'S256' (default) or 'plain' when enabled"
//	@Success		302
//	@Failure		400	{object}	object{error=string,error_description=string}
//	@Router			/oauth/authorize [get]
func (h *OAuthHandler) Authorize(c *gin.Context) {
	req := authorizationRequestFromQuery(c)

	_, _, err := h.authz.ValidateRequest(req)
	if err != nil {
		h.authorizeError(c, req, err)
		return
	}

	// Hand the browser to the login UI with the authorization parameters
	// intact; the UI posts them back to /oauth/login.
	target, parseErr := url.Parse(h.config.LoginUIURL)
	if parseErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Login UI is misconfigured",
		})
		return
	}
	target.RawQuery = c.Request.URL.RawQuery
	c.Redirect(http.StatusFound, target.String())
}

// authorizeError answers a failed authorization request. Errors discovered
// before the redirect URI was proven registered go back as JSON; everything
// after redirects to the client with RFC 6749 error parameters.
func (h *OAuthHandler) authorizeError(c *gin.Context, req services.AuthorizationRequest, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownClient):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Unknown or inactive client",
		})
	case errors.Is(err, services.ErrUnregisteredRedirect):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "redirect_uri is not registered for this client",
		})
	default:
		redirect, parseErr := url.Parse(req.RedirectURI)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		query := redirect.Query()
		query.Set("error", authorizeErrorCode(err))
		query.Set("error_description", authorizeErrorDescription(err))
		if req.State != "" {
			query.Set("state", req.State)
		}
		redirect.RawQuery = query.Encode()
		c.Redirect(http.StatusFound, redirect.String())
	}
}

func authorizeErrorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrUnsupportedResponseType):
		return "unsupported_response_type"
	case errors.Is(err, services.ErrGrantNotAllowed):
		return "unauthorized_client"
	case errors.Is(err, services.ErrScopeNotAllowed):
		return "invalid_scope"
	case errors.Is(err, services.ErrPKCERequired),
		errors.Is(err, services.ErrInvalidChallengeMethod),
		errors.Is(err, services.ErrStateTooLong):
		return "invalid_request"
	default:
		return "server_error"
	}
}

func authorizeErrorDescription(err error) string {
	switch {
	case errors.Is(err, services.ErrUnsupportedResponseType):
		return "Only response_type=code is supported"
	case errors.Is(err, services.ErrGrantNotAllowed):
		return "Client is not allowed to use the authorization_code grant"
	case errors.Is(err, services.ErrScopeNotAllowed):
		return "Requested scope exceeds what the client is allowed"
	case errors.Is(err, services.ErrPKCERequired):
		return "code_challenge is required for this client"
	case errors.Is(err, services.ErrInvalidChallengeMethod):
		return "Unsupported code_challenge_method"
	case errors.Is(err, services.ErrStateTooLong):
		return "state parameter is too long"
	default:
		return "Unexpected server error"
	}
}

// ClientInfo godoc
//
//	@Summary		Describe a client for the login UI
//	@Description	Returns the public client details the login page renders for consent.
//	@Tags			OAuth
//	@Produce		json
//	@Param			client_id		query		string	true	"Client identifier"
//	@Param			redirect_uri	query		string	true	"Redirect URI to validate along with the client"
//	@Success		200				{object}	object{client_id=string,name=string,client_type=string,scopes=[]string,require_pkce=bool}
//	@Failure		400				{object}	object{error=string,error_description=string}
//	@Router			/oauth/client-info [get]
func (h *OAuthHandler) ClientInfo(c *gin.Context) {
	client, err := h.authz.ResolveClient(c.Query("client_id"), c.Query("redirect_uri"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Unknown client or unregistered redirect URI",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_id":    client.ClientID,
		"name":         client.Name,
		"client_type":  client.ClientType,
		"scopes":       client.ScopeList(),
		"require_pkce": client.RequirePKCE || client.IsPublic(),
	})
}

type loginRequest struct {
	Login    string `json:"login"    binding:"required"`
	Password string `json:"password" binding:"required"`

	ResponseType        string `json:"response_type"`
	ClientID            string `json:"client_id" binding:"required"`
	RedirectURI         string `json:"redirect_uri" binding:"required"`
	Scope               string `json:"scope"`
	State               string `json:"state"`
	Nonce               string `json:"nonce"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}

// Login godoc
//
//	@Summary		Authenticate and receive an authorization code
//	@Description	Called by the login UI. Verifies the resource owner's credentials and returns the code plus echo parameters for the final redirect.
//	@Tags			OAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials plus the original authorization parameters"
//	@Success		200		{object}	object{code=string,state=string,redirect_uri=string}
//	@Failure		400		{object}	object{error=string,error_description=string}
//	@Failure		401		{object}	object{error=string,error_description=string}
//	@Router			/oauth/login [post]
func (h *OAuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "login, password, client_id and redirect_uri are required",
		})
		return
	}

	if body.ResponseType == "" {
		body.ResponseType = "code"
	}
	req := services.AuthorizationRequest{
		ResponseType:        body.ResponseType,
		ClientID:            body.ClientID,
		RedirectURI:         body.RedirectURI,
		Scope:               body.Scope,
		State:               body.State,
		Nonce:               body.Nonce,
		CodeChallenge:       body.CodeChallenge,
		CodeChallengeMethod: body.CodeChallengeMethod,
	}

	code, err := h.authz.Login(c, body.Login, body.Password, req)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "access_denied",
				"error_description": "Invalid credentials",
			})
		case errors.Is(err, services.ErrUnknownClient),
			errors.Is(err, services.ErrUnregisteredRedirect),
			errors.Is(err, services.ErrUnsupportedResponseType),
			errors.Is(err, services.ErrGrantNotAllowed),
			errors.Is(err, services.ErrScopeNotAllowed),
			errors.Is(err, services.ErrPKCERequired),
			errors.Is(err, services.ErrInvalidChallengeMethod),
			errors.Is(err, services.ErrStateTooLong):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_request",
				"error_description": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "Login failed",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":         code,
		"state":        body.State,
		"redirect_uri": body.RedirectURI,
	})
}
