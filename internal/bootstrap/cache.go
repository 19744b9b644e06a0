package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authcore/authcore/internal/cache"
	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/metrics"
)

// initializeMetrics registers the Prometheus collectors or returns the noop
// recorder.
func initializeMetrics(cfg *config.Config) metrics.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializeMetricsCache builds the cache that feeds the gauge updater.
// Returns nil when gauges are off, and the caller skips the updater job.
func initializeMetricsCache(ctx context.Context, cfg *config.Config) (cache.Cache[int64], error) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	switch cfg.MetricsCacheType {
	case config.MetricsCacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache(
			ctx,
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
			"authcore:metrics:",
			cfg.MetricsCacheClientTTL,
			cfg.MetricsCacheSizePerConn,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis-aside metrics cache: %w", err)
		}
		log.Printf("Metrics cache: redis-aside (addr=%s, db=%d)", cfg.RedisAddr, cfg.RedisDB)
		return c, nil

	case config.MetricsCacheTypeRedis:
		c, err := cache.NewRueidisCache[int64](
			ctx,
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
			"authcore:metrics:",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis metrics cache: %w", err)
		}
		log.Printf("Metrics cache: redis (addr=%s, db=%d)", cfg.RedisAddr, cfg.RedisDB)
		return c, nil

	default: // memory
		log.Println("Metrics cache: memory (single instance only)")
		return cache.NewMemoryCache[int64](), nil
	}
}
