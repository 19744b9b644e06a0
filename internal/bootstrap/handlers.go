package bootstrap

import (
	"github.com/go-authcore/authcore/internal/handlers"
)

// handlerSet groups all HTTP handlers.
type handlerSet struct {
	oauth *handlers.OAuthHandler
	token *handlers.TokenHandler
	oidc  *handlers.OIDCHandler
	admin *handlers.AdminHandler
}

// initializeHandlers creates all HTTP handlers from the application's
// services.
func initializeHandlers(app *Application) handlerSet {
	return handlerSet{
		oauth: handlers.NewOAuthHandler(app.AuthorizationService, app.Config),
		token: handlers.NewTokenHandler(app.TokenService, app.DB, app.Config),
		oidc: handlers.NewOIDCHandler(
			app.TokenService,
			app.AuthorizationService,
			app.IdentityProvider,
			app.TokenProvider,
			app.Config,
		),
		admin: handlers.NewAdminHandler(app.ClientService, app.AuditService),
	}
}
