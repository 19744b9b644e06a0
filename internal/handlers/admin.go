package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-authcore/authcore/internal/models"
	"github.com/go-authcore/authcore/internal/services"
	"github.com/go-authcore/authcore/internal/store"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the client registry and audit log to operators. The
// whole surface sits behind the static admin bearer token.
type AdminHandler struct {
	clients *services.ClientService
	audit   *services.AuditService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cs *services.ClientService, audit *services.AuditService) *AdminHandler {
	return &AdminHandler{clients: cs, audit: audit}
}

type createClientRequest struct {
	Name                 string   `json:"name" binding:"required"`
	ClientType           string   `json:"client_type"`
	RequirePKCE          bool     `json:"require_pkce"`
	AccessTokenLifetime  int      `json:"access_token_lifetime"`
	RefreshTokenLifetime int      `json:"refresh_token_lifetime"`
	GrantTypes           []string `json:"grant_types"`
	Scopes               []string `json:"scopes"`
	RedirectURIs         []string `json:"redirect_uris" binding:"required"`
}

type clientResponse struct {
	ClientID             string    `json:"client_id"`
	Name                 string    `json:"name"`
	ClientType           string    `json:"client_type"`
	RequirePKCE          bool      `json:"require_pkce"`
	AccessTokenLifetime  int       `json:"access_token_lifetime,omitempty"`
	RefreshTokenLifetime int       `json:"refresh_token_lifetime,omitempty"`
	GrantTypes           string    `json:"grant_types"`
	Scopes               []string  `json:"scopes"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`

	RedirectURIs []redirectURIResponse `json:"redirect_uris"`
}

type redirectURIResponse struct {
	ID        uint   `json:"id"`
	URI       string `json:"uri"`
	IsDefault bool   `json:"is_default"`
}

func toClientResponse(client *models.OAuthClient) clientResponse {
	resp := clientResponse{
		ClientID:             client.ClientID,
		Name:                 client.Name,
		ClientType:           client.ClientType,
		RequirePKCE:          client.RequirePKCE,
		AccessTokenLifetime:  client.AccessTokenLifetime,
		RefreshTokenLifetime: client.RefreshTokenLifetime,
		GrantTypes:           client.GrantTypes,
		Scopes:               client.ScopeList(),
		IsActive:             client.IsActive,
		CreatedAt:            client.CreatedAt,
	}
	for _, uri := range client.RedirectURIs {
		resp.RedirectURIs = append(resp.RedirectURIs, redirectURIResponse{
			ID:        uri.ID,
			URI:       uri.URI,
			IsDefault: uri.IsDefault,
		})
	}
	return resp
}

// CreateClient godoc
//
//	@Summary		Register a client
//	@Description	Creates a client. The plaintext secret appears only in this response.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		AdminAuth
//	@Param			request	body		createClientRequest	true	"Client definition"
//	@Success		201		{object}	object{client=clientResponse,client_secret=string}
//	@Failure		400		{object}	object{error=string,error_description=string}
//	@Router			/admin/clients [post]
func (h *AdminHandler) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "name and redirect_uris are required")
		return
	}

	client, secret, err := h.clients.Create(c, services.CreateClientInput{
		Name:                 req.Name,
		ClientType:           req.ClientType,
		RequirePKCE:          req.RequirePKCE,
		AccessTokenLifetime:  req.AccessTokenLifetime,
		RefreshTokenLifetime: req.RefreshTokenLifetime,
		GrantTypes:           req.GrantTypes,
		Scopes:               req.Scopes,
		RedirectURIs:         req.RedirectURIs,
	})
	if err != nil {
		h.clientError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"client":        toClientResponse(client),
		"client_secret": secret,
	})
}

// ListClients godoc
//
//	@Summary	List clients
//	@Tags		Admin
//	@Produce	json
//	@Security	AdminAuth
//	@Param		page		query		int		false	"Page number"
//	@Param		page_size	query		int		false	"Page size"
//	@Param		search		query		string	false	"Match against name or client_id"
//	@Success	200			{object}	object{clients=[]clientResponse,pagination=store.PaginationResult}
//	@Router		/admin/clients [get]
func (h *AdminHandler) ListClients(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	params := store.NewPaginationParams(page, pageSize, c.Query("search"))

	clients, pagination, err := h.clients.List(params)
	if err != nil {
		h.serverError(c)
		return
	}

	out := make([]clientResponse, 0, len(clients))
	for i := range clients {
		out = append(out, toClientResponse(&clients[i]))
	}
	c.JSON(http.StatusOK, gin.H{"clients": out, "pagination": pagination})
}

// GetClient godoc
//
//	@Summary	Fetch one client
//	@Tags		Admin
//	@Produce	json
//	@Security	AdminAuth
//	@Param		client_id	path		string	true	"Client identifier"
//	@Success	200			{object}	clientResponse
//	@Failure	404			{object}	object{error=string}
//	@Router		/admin/clients/{client_id} [get]
func (h *AdminHandler) GetClient(c *gin.Context) {
	client, err := h.clients.Get(c.Param("client_id"))
	if err != nil {
		h.clientError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClientResponse(client))
}

type updateClientRequest struct {
	Name                 *string  `json:"name"`
	RequirePKCE          *bool    `json:"require_pkce"`
	AccessTokenLifetime  *int     `json:"access_token_lifetime"`
	RefreshTokenLifetime *int     `json:"refresh_token_lifetime"`
	Scopes               []string `json:"scopes"`
}

// UpdateClient godoc
//
//	@Summary	Update a client
//	@Tags		Admin
//	@Accept		json
//	@Produce	json
//	@Security	AdminAuth
//	@Param		client_id	path		string				true	"Client identifier"
//	@Param		request		body		updateClientRequest	true	"Fields to change"
//	@Success	200			{object}	clientResponse
//	@Failure	404			{object}	object{error=string}
//	@Router		/admin/clients/{client_id} [patch]
func (h *AdminHandler) UpdateClient(c *gin.Context) {
	var req updateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "malformed request body")
		return
	}

	client, err := h.clients.Update(c, c.Param("client_id"), services.UpdateClientInput{
		Name:                 req.Name,
		RequirePKCE:          req.RequirePKCE,
		AccessTokenLifetime:  req.AccessTokenLifetime,
		RefreshTokenLifetime: req.RefreshTokenLifetime,
		Scopes:               req.Scopes,
	})
	if err != nil {
		h.clientError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClientResponse(client))
}

// RegenerateSecret godoc
//
//	@Summary	Rotate a client secret
//	@Tags		Admin
//	@Produce	json
//	@Security	AdminAuth
//	@Param		client_id	path		string	true	"Client identifier"
//	@Success	200			{object}	object{client_secret=string}
//	@Failure	404			{object}	object{error=string}
//	@Router		/admin/clients/{client_id}/secret [post]
func (h *AdminHandler) RegenerateSecret(c *gin.Context) {
	secret, err := h.clients.RegenerateSecret(c, c.Param("client_id"))
	if err != nil {
		h.clientError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_secret": secret})
}

type addRedirectURIRequest struct {
	URI string `json:"uri" binding:"required"`
}

// AddRedirectURI godoc
//
//	@Summary	Register a redirect URI
//	@Tags		Admin
//	@Accept		json
//	@Produce	json
//	@Security	AdminAuth
//	@Param		client_id	path		string					true	"Client identifier"
//	@Param		request		body		addRedirectURIRequest	true	"URI to add"
//	@Success	201			{object}	redirectURIResponse
//	@Router		/admin/clients/{client_id}/redirect-uris [post]
func (h *AdminHandler) AddRedirectURI(c *gin.Context) {
	var req addRedirectURIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "uri is required")
		return
	}

	uri, err := h.clients.AddRedirectURI(c, c.Param("client_id"), req.URI)
	if err != nil {
		h.clientError(c, err)
		return
	}
	c.JSON(http.StatusCreated, redirectURIResponse{ID: uri.ID, URI: uri.URI, IsDefault: uri.IsDefault})
}

// RemoveRedirectURI godoc
//
//	@Summary	Remove a redirect URI
//	@Tags		Admin
//	@Produce	json
//	@Security	AdminAuth
//	@Param		client_id	path		string	true	"Client identifier"
//	@Param		uri_id		path		int		true	"Redirect URI id"
//	@Success	204
//	@Failure	400	{object}	object{error=string,error_description=string}
//	@Router		/admin/clients/{client_id}/redirect-uris/{uri_id} [delete]
func (h *AdminHandler) RemoveRedirectURI(c *gin.Context) {
	uriID, err := strconv.ParseUint(c.Param("uri_id"), 10, 64)
	if err != nil {
		h.badRequest(c, "uri_id must be numeric")
		return
	}

	if err := h.clients.RemoveRedirectURI(c, c.Param("client_id"), uint(uriID)); err != nil {
		h.clientError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeactivateClient godoc
//
//	@Summary	Deactivate a client
//	@Tags		Admin
//	@Produce	json
//	@Security	AdminAuth
//	@Param		client_id	path	string	true	"Client identifier"
//	@Success	204
//	@Failure	404	{object}	object{error=string}
//	@Router		/admin/clients/{client_id} [delete]
func (h *AdminHandler) DeactivateClient(c *gin.Context) {
	if err := h.clients.Deactivate(c, c.Param("client_id")); err != nil {
		h.clientError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListAuditLogs godoc
//
//	@Summary	List audit events
//	@Tags		Admin
//	@Produce	json
//	@Security	AdminAuth
//	@Param		page		query		int		false	"Page number"
//	@Param		page_size	query		int		false	"Page size"
//	@Param		event_type	query		string	false	"Filter by event type"
//	@Param		severity	query		string	false	"Filter by severity"
//	@Param		client_id	query		string	false	"Filter by client"
//	@Param		user_id		query		string	false	"Filter by user"
//	@Param		from		query		string	false	"RFC 3339 lower bound"
//	@Param		to			query		string	false	"RFC 3339 upper bound"
//	@Success	200			{object}	object{logs=[]models.AuditLog,pagination=store.PaginationResult}
//	@Router		/admin/audit-logs [get]
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	params := store.NewPaginationParams(page, pageSize, "")

	filters := store.AuditLogFilters{
		EventType: c.Query("event_type"),
		Severity:  c.Query("severity"),
		ClientID:  c.Query("client_id"),
		UserID:    c.Query("user_id"),
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.From = t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.To = t
		}
	}

	logs, pagination, err := h.audit.List(filters, params)
	if err != nil {
		h.serverError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "pagination": pagination})
}

func (h *AdminHandler) badRequest(c *gin.Context, description string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":             "invalid_request",
		"error_description": description,
	})
}

func (h *AdminHandler) serverError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
}

func (h *AdminHandler) clientError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, services.ErrInvalidClientType),
		errors.Is(err, services.ErrInvalidGrantTypes),
		errors.Is(err, services.ErrNoRedirectURI),
		errors.Is(err, services.ErrMalformedRedirect),
		errors.Is(err, services.ErrLastRedirectURI),
		errors.Is(err, services.ErrPublicClientSecret):
		h.badRequest(c, err.Error())
	default:
		h.serverError(c)
	}
}
