package metrics

import (
	"context"
	"time"

	"github.com/go-authcore/authcore/internal/cache"
)

// CacheWrapper provides a read-through cache for the gauge counts the
// periodic updater publishes. The database is queried on cache miss only,
// keeping count queries off the hot path even with many instances.
type CacheWrapper struct {
	store CounterStore
	cache cache.Cache[int64]
}

// NewCacheWrapper creates a new cache wrapper for metrics counts.
func NewCacheWrapper(store CounterStore, cache cache.Cache[int64]) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: cache,
	}
}

// GetActiveRefreshTokens returns the live refresh token count, cache-aside.
func (m *CacheWrapper) GetActiveRefreshTokens(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.cache.GetWithFetch(
		ctx,
		"tokens:refresh:active",
		ttl,
		func(ctx context.Context, key string) (int64, error) {
			return m.store.CountActiveRefreshTokens()
		},
	)
}

// GetPendingAuthCodes returns the pending authorization code count, cache-aside.
func (m *CacheWrapper) GetPendingAuthCodes(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.cache.GetWithFetch(
		ctx,
		"codes:pending",
		ttl,
		func(ctx context.Context, key string) (int64, error) {
			return m.store.CountPendingAuthorizationCodes()
		},
	)
}
