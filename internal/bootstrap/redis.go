package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// initializeRateLimitRedisClient creates the go-redis client shared by the
// redis rate limit stores. Returns nil when rate limiting is disabled or on
// the memory store; ulule/limiter requires go-redis types, hence a second
// Redis client alongside rueidis.
func initializeRateLimitRedisClient(
	ctx context.Context,
	cfg *config.Config,
) (*redis.Client, error) {
	if !cfg.EnableRateLimit {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}
	if cfg.RateLimitStore != string(middleware.RateLimitStoreRedis) {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	log.Printf("Rate limiting Redis client initialized (address: %s, db: %d)", cfg.RedisAddr, cfg.RedisDB)
	return client, nil
}
