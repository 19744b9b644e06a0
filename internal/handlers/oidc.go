package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/identity"
	"github.com/go-authcore/authcore/internal/services"
	"github.com/go-authcore/authcore/internal/token"
	"github.com/go-authcore/authcore/internal/util"

	"github.com/gin-gonic/gin"
)

// OIDCHandler serves discovery, JWKS, userinfo and logout.
type OIDCHandler struct {
	tokens   *services.TokenService
	authz    *services.AuthorizationService
	identity identity.Provider
	provider *token.Provider
	config   *config.Config
}

// NewOIDCHandler creates a new OIDCHandler.
func NewOIDCHandler(
	ts *services.TokenService,
	as *services.AuthorizationService,
	idp identity.Provider,
	tp *token.Provider,
	cfg *config.Config,
) *OIDCHandler {
	return &OIDCHandler{
		tokens:   ts,
		authz:    as,
		identity: idp,
		provider: tp,
		config:   cfg,
	}
}

// discoveryMetadata is the OpenID Provider Metadata document.
type discoveryMetadata struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	RevocationEndpoint               string   `json:"revocation_endpoint"`
	IntrospectionEndpoint            string   `json:"introspection_endpoint"`
	EndSessionEndpoint               string   `json:"end_session_endpoint"`
	JwksURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported"`
}

// Discovery godoc
//
//	@Summary		OIDC Discovery
//	@Description	OpenID Connect Provider Metadata (OIDC Discovery 1.0 / RFC 8414)
//	@Tags			OIDC
//	@Produce		json
//	@Success		200	{object}	discoveryMetadata
//	@Router			/.well-known/openid-configuration [get]
func (h *OIDCHandler) Discovery(c *gin.Context) {
	base := h.config.Issuer()
	meta := discoveryMetadata{
		Issuer:                           base,
		AuthorizationEndpoint:            base + "/oauth/authorize",
		TokenEndpoint:                    base + "/oauth/token",
		UserinfoEndpoint:                 base + "/oauth/userinfo",
		RevocationEndpoint:               base + "/oauth/revoke",
		IntrospectionEndpoint:            base + "/oauth/introspect",
		EndSessionEndpoint:               base + "/oauth/logout",
		JwksURI:                          base + "/.well-known/jwks.json",
		ResponseTypesSupported:           []string{"code"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"HS256"},
		ScopesSupported:                  []string{"openid", "profile", "email"},
		TokenEndpointAuthMethods: []string{
			"client_secret_basic",
			"client_secret_post",
			"none",
		},
		GrantTypesSupported: []string{
			GrantTypeAuthorizationCode,
			GrantTypeRefreshToken,
		},
		ClaimsSupported: []string{
			"sub",
			"iss",
			"aud",
			"name",
			"preferred_username",
			"email",
			"email_verified",
			"roles",
			"permissions",
		},
		CodeChallengeMethodsSupported: h.codeChallengeMethods(),
	}
	c.JSON(http.StatusOK, meta)
}

func (h *OIDCHandler) codeChallengeMethods() []string {
	methods := []string{"S256"}
	if h.config.PKCEAllowPlain {
		methods = append(methods, "plain")
	}
	return methods
}

// JWKS godoc
//
//	@Summary		JSON Web Key Set
//	@Description	Lists key identifiers only. Tokens are HS256, so the key material itself is never published.
//	@Tags			OIDC
//	@Produce		json
//	@Success		200	{object}	object{keys=[]object{kty=string,alg=string,use=string,kid=string}}
//	@Router			/.well-known/jwks.json [get]
func (h *OIDCHandler) JWKS(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"keys": []gin.H{
			{
				"kty": "oct",
				"alg": "HS256",
				"use": "sig",
				"kid": h.provider.KeyID(),
			},
		},
	})
}

// UserInfo godoc
//
//	@Summary		UserInfo endpoint
//	@Description	Returns claims about the authenticated end user, gated by the token's scopes (OIDC Core 1.0 section 5.3). Supports GET and POST.
//	@Tags			OIDC
//	@Produce		json
//	@Param			Authorization	header		string	true	"Bearer access token"
//	@Success		200				{object}	object
//	@Failure		401				{object}	object{error=string,error_description=string}
//	@Router			/oauth/userinfo [get]
//	@Router			/oauth/userinfo [post]
func (h *OIDCHandler) UserInfo(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		h.bearerError(c, "Bearer token required")
		return
	}

	claims, err := h.tokens.ValidateBearer(authHeader)
	if err != nil {
		h.bearerError(c, "Access token is invalid or expired")
		return
	}

	ident, err := h.identity.Lookup(c.Request.Context(), claims.UserID)
	if err != nil {
		h.bearerError(c, "User not found")
		return
	}

	c.JSON(http.StatusOK, buildUserInfoClaims(h.config.Issuer(), claims, ident))
}

func (h *OIDCHandler) bearerError(c *gin.Context, description string) {
	c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":             "invalid_token",
		"error_description": description,
	})
}

// buildUserInfoClaims assembles the response. sub and iss always appear;
// profile and email claims need their scopes.
func buildUserInfoClaims(issuer string, claims *token.Claims, ident *identity.Identity) gin.H {
	out := gin.H{
		"sub": util.FormatUserID(ident.UserID),
		"iss": issuer,
	}

	scopes := token.ScopeSet(claims.Scopes)
	if _, ok := scopes["profile"]; ok {
		out["preferred_username"] = ident.Username
		if ident.FullName != "" {
			out["name"] = ident.FullName
		}
		if len(ident.Roles) > 0 {
			out["roles"] = ident.Roles
		}
		if len(ident.Permissions) > 0 {
			out["permissions"] = ident.Permissions
		}
	}
	if _, ok := scopes["email"]; ok {
		out["email"] = ident.Email
		out["email_verified"] = false
	}

	return out
}

// Logout godoc
//
//	@Summary		End session
//	@Description	Revokes every refresh token of the subject named by id_token_hint, across all clients. Supports GET and POST; redirects when a registered post_logout_redirect_uri is given.
//	@Tags			OIDC
//	@Produce		json
//	@Param			id_token_hint				query		string	false	"ID token identifying the session subject"
//	@Param			post_logout_redirect_uri	query		string	false	"Registered redirect target"
//	@Param			state						query		string	false	"Echoed on the redirect"
//	@Success		200							{object}	object{tokens_revoked=int}
//	@Success		302
//	@Failure		400	{object}	object{error=string,error_description=string}
//	@Router			/oauth/logout [get]
//	@Router			/oauth/logout [post]
func (h *OIDCHandler) Logout(c *gin.Context) {
	// The hint is optional: without it there is no subject to sign out,
	// so nothing is revoked, but a registered redirect is still honored.
	var revoked int64
	idTokenHint := c.Query("id_token_hint")
	if idTokenHint == "" {
		idTokenHint = c.PostForm("id_token_hint")
	}
	if idTokenHint != "" {
		var err error
		revoked, err = h.tokens.Logout(c, idTokenHint)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_request",
				"error_description": "id_token_hint is not a token issued by this server",
			})
			return
		}
	}

	redirectURI := c.Query("post_logout_redirect_uri")
	if redirectURI == "" {
		redirectURI = c.PostForm("post_logout_redirect_uri")
	}
	if redirectURI != "" && h.authz.IsRegisteredRedirect(redirectURI) {
		state := c.Query("state")
		if state == "" {
			state = c.PostForm("state")
		}
		target, err := url.Parse(redirectURI)
		if err == nil {
			if state != "" {
				query := target.Query()
				query.Set("state", state)
				target.RawQuery = query.Encode()
			}
			c.Redirect(http.StatusFound, target.String())
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"tokens_revoked": revoked})
}
