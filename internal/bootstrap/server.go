package bootstrap

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-authcore/authcore/internal/cache"
	"github.com/go-authcore/authcore/internal/config"
	"github.com/go-authcore/authcore/internal/metrics"
	"github.com/go-authcore/authcore/internal/services"
	"github.com/go-authcore/authcore/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server, app.Config.ShutdownTimeout)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addAuditServiceShutdownJob(m, app.AuditService)
	addExpiredRecordCleanupJob(m, app.Config, app.AuthorizationService, app.TokenService, app.AuditService)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache)
	addMetricsCacheShutdownJob(m, app.MetricsCache)
	addStoreShutdownJob(m, app.DB)

	// Wait for graceful shutdown
	<-m.Done()
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, srv *http.Server, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		log.Println("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
			return err
		}
		log.Println("Redis connection closed")
		return nil
	})
}

// addAuditServiceShutdownJob adds audit service shutdown handler
func addAuditServiceShutdownJob(m *graceful.Manager, auditService *services.AuditService) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down audit service...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := auditService.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down audit service: %v", err)
			return err
		}
		return nil
	})
}

// addExpiredRecordCleanupJob adds the periodic housekeeping job that removes
// expired authorization codes, dead refresh tokens and old audit logs.
func addExpiredRecordCleanupJob(
	m *graceful.Manager,
	cfg *config.Config,
	authzService *services.AuthorizationService,
	tokenService *services.TokenService,
	auditService *services.AuditService,
) {
	if cfg.CleanupInterval <= 0 {
		return
	}

	runCleanup := func() {
		if deleted, err := authzService.CleanupExpiredCodes(); err != nil {
			log.Printf("Failed to cleanup expired authorization codes: %v", err)
		} else if deleted > 0 {
			log.Printf("Cleaned up %d expired authorization codes", deleted)
		}

		if deleted, err := tokenService.CleanupExpiredTokens(); err != nil {
			log.Printf("Failed to cleanup expired refresh tokens: %v", err)
		} else if deleted > 0 {
			log.Printf("Cleaned up %d expired refresh tokens", deleted)
		}

		if !cfg.AuditEnabled || cfg.CleanupRetention <= 0 {
			return
		}
		if deleted, err := auditService.CleanupOldLogs(cfg.CleanupRetention); err != nil {
			log.Printf("Failed to cleanup old audit logs: %v", err)
		} else if deleted > 0 {
			log.Printf("Cleaned up %d old audit logs", deleted)
		}
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()

		// Run cleanup immediately on startup
		runCleanup()

		for {
			select {
			case <-ticker.C:
				runCleanup()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db *store.Store,
	recorder metrics.Recorder,
	metricsCache cache.Cache[int64],
) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.MetricsGaugeUpdateInterval)
		defer ticker.Stop()

		// Create cache wrapper
		cacheWrapper := metrics.NewCacheWrapper(db, metricsCache)

		// Update immediately on startup
		updateGaugeMetricsWithCache(ctx, cacheWrapper, recorder, cfg.MetricsCacheTTL)

		for {
			select {
			case <-ticker.C:
				updateGaugeMetricsWithCache(ctx, cacheWrapper, recorder, cfg.MetricsCacheTTL)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addMetricsCacheShutdownJob adds metrics cache cleanup on shutdown
func addMetricsCacheShutdownJob(m *graceful.Manager, metricsCache cache.Cache[int64]) {
	if metricsCache == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := metricsCache.Close(); err != nil {
			log.Printf("Error closing metrics cache: %v", err)
		} else {
			log.Println("Metrics cache closed")
		}
		return nil
	})
}

// addStoreShutdownJob adds database connection cleanup on shutdown
func addStoreShutdownJob(m *graceful.Manager, db *store.Store) {
	m.AddShutdownJob(func() error {
		log.Println("Closing database connection...")
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
			return err
		}
		log.Println("Database connection closed")
		return nil
	})
}

// errorLogger handles rate-limited error logging
type errorLogger struct {
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
}

// newErrorLogger creates a new error logger with rate limiting
func newErrorLogger() *errorLogger {
	return &errorLogger{
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute, // Log at most once per 5 minutes per operation
	}
}

// logIfNeeded logs an error only if rate limit allows
func (e *errorLogger) logIfNeeded(operation string, err error) {
	now := time.Now()
	lastTime, exists := e.lastErrorTimes[operation]

	if !exists || now.Sub(lastTime) >= e.rateLimitWindow {
		log.Printf("Database query failed for %s: %v (further errors will be suppressed for %v)",
			operation, err, e.rateLimitWindow)
		e.lastErrorTimes[operation] = now
	}
}

var gaugeErrorLogger = newErrorLogger()

// updateGaugeMetricsWithCache updates gauge metrics using a cache-backed store.
// This reduces database load in multi-instance deployments by caching query results.
// The cache TTL should stay below the update interval so readings never go stale.
func updateGaugeMetricsWithCache(
	ctx context.Context,
	cacheWrapper *metrics.CacheWrapper,
	recorder metrics.Recorder,
	cacheTTL time.Duration,
) {
	// Update active refresh tokens count
	activeRefreshTokens, err := cacheWrapper.GetActiveRefreshTokens(ctx, cacheTTL)
	if err != nil {
		recorder.RecordDatabaseQueryError("count_refresh_tokens")
		gaugeErrorLogger.logIfNeeded("count_refresh_tokens", err)
	} else {
		recorder.SetActiveRefreshTokens(activeRefreshTokens)
	}

	// Update pending authorization codes count
	pendingAuthCodes, err := cacheWrapper.GetPendingAuthCodes(ctx, cacheTTL)
	if err != nil {
		recorder.RecordDatabaseQueryError("count_pending_auth_codes")
		gaugeErrorLogger.logIfNeeded("count_pending_auth_codes", err)
	} else {
		recorder.SetPendingAuthCodes(pendingAuthCodes)
	}
}
