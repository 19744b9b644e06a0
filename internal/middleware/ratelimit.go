package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitStoreType selects the backing store for rate limit counters.
type RateLimitStoreType string

const (
	// RateLimitStoreMemory keeps counters in process. Single instance only.
	RateLimitStoreMemory RateLimitStoreType = "memory"
	// RateLimitStoreRedis keeps counters in Redis, shared across instances.
	RateLimitStoreRedis RateLimitStoreType = "redis"
)

// RateLimitConfig configures one rate limited endpoint.
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration // memory store only

	StoreType RateLimitStoreType

	// Only used with the redis store. The client is shared so each limited
	// endpoint does not open its own connection pool.
	RedisClient *redis.Client

	// Called when a request is rejected, before the 429 is written.
	OnLimitReached func(c *gin.Context)
}

// NewRateLimiter builds a gin middleware limiting requests per client IP.
func NewRateLimiter(config RateLimitConfig) (gin.HandlerFunc, error) {
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  int64(config.RequestsPerMinute),
	}

	var store limiter.Store
	var err error

	switch config.StoreType {
	case RateLimitStoreRedis:
		if config.RedisClient == nil {
			return nil, fmt.Errorf("redis rate limit store requires a redis client")
		}
		store, err = limiterRedis.NewStoreWithOptions(config.RedisClient, limiter.StoreOptions{
			Prefix:          "ratelimit",
			CleanUpInterval: config.CleanupInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}

	case RateLimitStoreMemory:
		fallthrough
	default:
		store = memory.NewStore()
	}

	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(func(c *gin.Context) {
		if config.OnLimitReached != nil {
			config.OnLimitReached(c)
		}
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate_limit_exceeded",
			"error_description": "Too many requests. Please try again later.",
		})
		c.Abort()
	})), nil
}
