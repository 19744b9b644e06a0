package bootstrap

import (
	"fmt"
	"log"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/identity"
	"github.com/go-authcore/authcore/internal/store"
	"github.com/go-authcore/authcore/internal/token"

	"github.com/go-authcore/authcore/internal/client"
)

// initializeDatabase creates the store and runs migrations plus seeding.
func initializeDatabase(cfg *config.Config) (*store.Store, error) {
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Printf("Database initialized (driver: %s)", cfg.DatabaseDriver)
	return db, nil
}

// initializeTokenProvider builds the HS256 signer and token provider.
func initializeTokenProvider(cfg *config.Config) (*token.Provider, error) {
	signer, err := token.NewSigner(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}
	log.Printf("Token signer initialized (kid: %s)", signer.KeyID())
	return token.NewProvider(signer, cfg.Issuer(), cfg.ClockSkewLeeway), nil
}

// initializeIdentityProvider picks the identity backend per configuration.
func initializeIdentityProvider(cfg *config.Config, db *store.Store) identity.Provider {
	switch cfg.IdentityMode {
	case config.IdentityModeHTTPAPI:
		retryClient, err := client.CreateRetryClient(
			cfg.IdentityAPIAuthMode,
			cfg.IdentityAPIAuthSecret,
			cfg.IdentityAPITimeout,
			cfg.IdentityAPISkipVerify,
			cfg.IdentityAPIMaxRetries,
			cfg.IdentityAPIRetryDelay,
			cfg.IdentityAPIMaxDelay,
			cfg.IdentityAPIAuthHeader,
		)
		if err != nil {
			log.Fatalf("Failed to create identity API client: %v", err)
		}
		log.Printf("Identity provider: httpapi (url: %s)", cfg.IdentityAPIURL)
		return identity.NewHTTPProvider(cfg.IdentityAPIURL, retryClient)
	default:
		log.Println("Identity provider: local")
		return identity.NewLocalProvider(db)
	}
}
