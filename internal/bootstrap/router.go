package bootstrap

import (
	"log"
	"net/http"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/metrics"
	"github.com/go-authcore/authcore/internal/middleware"
	"github.com/go-authcore/authcore/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(app *Application) *gin.Engine {
	cfg := app.Config

	// Setup Gin mode
	setupGinMode(cfg)
	r := gin.New()

	// Setup middleware
	r.Use(metrics.HTTPMetricsMiddleware(app.MetricsRecorder))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.IPMiddleware())

	// Health check endpoint
	r.GET("/health", createHealthCheckHandler(app.DB))

	// Setup metrics endpoint
	setupMetricsEndpoint(r, cfg)

	// Setup rate limiting
	rateLimiters := setupRateLimiting(cfg, app.AuditService, app.RateLimitRedisClient)

	// Setup all routes
	setupAllRoutes(r, cfg, app.HandlerSet, rateLimiters)

	// Log server startup info
	logServerStartup(cfg)

	return r
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(
	r *gin.Engine,
	cfg *config.Config,
	h handlerSet,
	rateLimiters rateLimitMiddlewares,
) {
	// Swagger documentation (development only)
	if cfg.Debug {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		log.Println("Swagger UI enabled at: /swagger/index.html")
	}

	// OIDC discovery endpoints (public)
	wellKnown := r.Group("/.well-known")
	{
		wellKnown.GET("/openid-configuration", h.oidc.Discovery)
		wellKnown.GET("/jwks.json", h.oidc.JWKS)
	}

	// OAuth endpoints (public)
	oauth := r.Group("/oauth")
	{
		oauth.GET("/authorize", h.oauth.Authorize)
		oauth.GET("/client-info", h.oauth.ClientInfo)
		oauth.POST("/login", rateLimiters.login, h.oauth.Login)
		oauth.POST("/token", rateLimiters.token, h.token.Token)
		oauth.POST("/revoke", h.token.Revoke)
		oauth.POST("/introspect", h.token.Introspect)
		oauth.GET("/userinfo", h.oidc.UserInfo)
		oauth.POST("/userinfo", h.oidc.UserInfo)
		oauth.GET("/logout", h.oidc.Logout)
		oauth.POST("/logout", h.oidc.Logout)
	}

	// Admin API routes (require Bearer token)
	admin := r.Group("/admin")
	admin.Use(middleware.AdminAuthMiddleware(cfg.AdminAPIToken))
	{
		admin.POST("/clients", h.admin.CreateClient)
		admin.GET("/clients", h.admin.ListClients)
		admin.GET("/clients/:client_id", h.admin.GetClient)
		admin.PATCH("/clients/:client_id", h.admin.UpdateClient)
		admin.DELETE("/clients/:client_id", h.admin.DeactivateClient)
		admin.POST("/clients/:client_id/secret", h.admin.RegenerateSecret)
		admin.POST("/clients/:client_id/redirect-uris", h.admin.AddRedirectURI)
		admin.DELETE("/clients/:client_id/redirect-uris/:uri_id", h.admin.RemoveRedirectURI)
		admin.GET("/audit-logs", h.admin.ListAuditLogs)
	}
}

// createHealthCheckHandler creates health check endpoint handler
// healthCheck godoc
//
//	@Summary		Health check
//	@Description	Check server and database health status
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	object{status=string,database=string}	"Service is healthy"
//	@Failure		503	{object}	object{status=string,database=string}	"Service is unhealthy"
//	@Router			/health [get]
func createHealthCheckHandler(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch err := db.Health(c.Request.Context()); err {
		case nil:
			c.JSON(http.StatusOK, gin.H{
				"status":   "healthy",
				"database": "connected",
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
		}
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	mode := ginModeMap[cfg.Debug]
	gin.SetMode(mode)
	log.Printf("Gin mode: %s", ginModeLogMessage[cfg.Debug])
}

var ginModeMap = map[bool]string{
	true:  gin.DebugMode,
	false: gin.ReleaseMode,
}

var ginModeLogMessage = map[bool]string{
	true:  "Debug (development)",
	false: "Release (production)",
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.Printf("Identity mode: %s", cfg.IdentityMode)
	log.Printf("Authorization server starting on port %s", cfg.Port)
	log.Printf("Issuer: %s", cfg.BaseURL)
	log.Printf("Discovery: %s/.well-known/openid-configuration", cfg.BaseURL)
}
