package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authcore/authcore/internal/cache"
	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/identity"
	"github.com/go-authcore/authcore/internal/metrics"
	"github.com/go-authcore/authcore/internal/services"
	"github.com/go-authcore/authcore/internal/store"
	"github.com/go-authcore/authcore/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components.
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	TokenProvider        *token.Provider
	IdentityProvider     identity.Provider
	MetricsRecorder      metrics.Recorder
	MetricsCache         cache.Cache[int64]
	RateLimitRedisClient *redis.Client

	// Services
	AuditService         *services.AuditService
	ClientService        *services.ClientService
	AuthorizationService *services.AuthorizationService
	TokenService         *services.TokenService

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes every layer and blocks until shutdown completes.
func Run(ctx context.Context, cfg *config.Config) error {
	app := &Application{Config: cfg}

	if err := app.initializeInfrastructure(ctx); err != nil {
		return err
	}
	app.initializeBusinessLayer()
	app.initializeHTTPLayer()
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up the database, token signing, identity,
// metrics and Redis.
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	app.DB, err = initializeDatabase(app.Config)
	if err != nil {
		return err
	}

	app.TokenProvider, err = initializeTokenProvider(app.Config)
	if err != nil {
		return err
	}

	app.IdentityProvider = initializeIdentityProvider(app.Config, app.DB)

	app.MetricsRecorder = initializeMetrics(app.Config)
	app.MetricsCache, err = initializeMetricsCache(ctx, app.Config)
	if err != nil {
		return err
	}

	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer wires the services.
func (app *Application) initializeBusinessLayer() {
	app.AuditService = services.NewAuditService(app.DB, app.Config.AuditEnabled, 0)

	app.ClientService = services.NewClientService(app.DB, app.Config, app.AuditService)
	app.AuthorizationService = services.NewAuthorizationService(
		app.DB,
		app.Config,
		app.IdentityProvider,
		app.AuditService,
		app.MetricsRecorder,
	)
	app.TokenService = services.NewTokenService(
		app.DB,
		app.Config,
		app.TokenProvider,
		app.IdentityProvider,
		app.AuditService,
		app.MetricsRecorder,
	)
}

// initializeHTTPLayer builds handlers, router and server.
func (app *Application) initializeHTTPLayer() {
	app.HandlerSet = initializeHandlers(app)
	app.Router = setupRouter(app)
	app.Server = createHTTPServer(app.Config, app.Router)
}
