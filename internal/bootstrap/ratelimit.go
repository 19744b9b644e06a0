package bootstrap

import (
	"log"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/middleware"
	"github.com/go-authcore/authcore/internal/models"
	"github.com/go-authcore/authcore/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// rateLimitMiddlewares holds one limiter per guarded endpoint.
type rateLimitMiddlewares struct {
	login gin.HandlerFunc
	token gin.HandlerFunc
}

// setupRateLimiting builds the limiters, or no-ops when disabled.
func setupRateLimiting(
	cfg *config.Config,
	auditService *services.AuditService,
	redisClient *redis.Client,
) rateLimitMiddlewares {
	noOp := func(c *gin.Context) { c.Next() }
	if !cfg.EnableRateLimit {
		return rateLimitMiddlewares{login: noOp, token: noOp}
	}

	log.Printf("Rate limiting enabled (store: %s)", cfg.RateLimitStore)
	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)

	createLimiter := func(requestsPerMinute int, endpoint string) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			StoreType:         storeType,
			RedisClient:       redisClient,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			OnLimitReached: func(c *gin.Context) {
				auditService.Log(c, services.AuditEntry{
					EventType: models.EventRateLimited,
					Severity:  models.SeverityWarning,
					Details:   models.AuditDetails{"endpoint": endpoint},
				})
			},
		})
		if err != nil {
			log.Fatalf("Failed to create rate limiter for %s: %v", endpoint, err)
		}
		return limiter
	}

	return rateLimitMiddlewares{
		login: createLimiter(cfg.LoginRateLimit, "/oauth/login"),
		token: createLimiter(cfg.TokenRateLimit, "/oauth/token"),
	}
}
