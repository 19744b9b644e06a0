package cache

import (
	"context"
	"time"
)

// Cache is a key-value cache with TTL semantics. T is the stored value type.
// Implementations: MemoryCache (single instance), RueidisCache (shared Redis)
// and RueidisAsideCache (Redis with client-side caching, int64 only).
type Cache[T any] interface {
	// Get retrieves a value. Returns ErrCacheMiss for absent or expired keys.
	Get(ctx context.Context, key string) (T, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value T, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// GetWithFetch retrieves a value using the cache-aside pattern. On miss,
	// fetchFunc is called and the result is stored with the given TTL.
	GetWithFetch(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fetchFunc func(ctx context.Context, key string) (T, error),
	) (T, error)

	// Close releases backend resources.
	Close() error

	// Health checks backend reachability.
	Health(ctx context.Context) error
}
