package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidisaside"
)

// Compile-time interface check.
var _ Cache[int64] = (*RueidisAsideCache)(nil)

// RueidisAsideCache stores int64 counters in Redis with rueidis client-side
// caching (RESP3 invalidation). The aside client also provides stampede
// protection, which matters when many instances refresh the same gauge at
// once. Counter-only because that is what the metrics path needs.
type RueidisAsideCache struct {
	client    rueidisaside.CacheAsideClient
	keyPrefix string
	clientTTL time.Duration
}

// NewRueidisAsideCache connects to Redis with client-side caching enabled.
// clientTTL bounds the local cache lifetime; cacheSizeMB is the per-connection
// client cache budget.
func NewRueidisAsideCache(
	ctx context.Context,
	addr, password string,
	db int,
	keyPrefix string,
	clientTTL time.Duration,
	cacheSizeMB int,
) (*RueidisAsideCache, error) {
	client, err := rueidisaside.NewClient(rueidisaside.ClientOption{
		ClientOption: rueidis.ClientOption{
			InitAddress:       []string{addr},
			Password:          password,
			SelectDB:          db,
			DisableCache:      false,
			CacheSizeEachConn: cacheSizeMB * 1024 * 1024,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rueidisaside client: %w", err)
	}

	c := &RueidisAsideCache{
		client:    client,
		keyPrefix: keyPrefix,
		clientTTL: clientTTL,
	}

	if err := c.Health(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// Get retrieves a counter. Reported as ErrCacheMiss when absent so callers
// can fall back to GetWithFetch.
func (r *RueidisAsideCache) Get(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(
		ctx,
		r.clientTTL,
		r.keyPrefix+key,
		func(ctx context.Context, key string) (string, error) {
			return "", ErrCacheMiss
		},
	)
	if err != nil {
		if err == ErrCacheMiss {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if val == "" {
		return 0, ErrCacheMiss
	}

	value, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}

// GetWithFetch retrieves a counter with rueidisaside's built-in cache-aside
// flow. fetchFunc runs on miss; concurrent misses on the same key collapse to
// one fetch.
func (r *RueidisAsideCache) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (int64, error),
) (int64, error) {
	val, err := r.client.Get(
		ctx,
		ttl,
		r.keyPrefix+key,
		func(ctx context.Context, key string) (string, error) {
			value, err := fetchFunc(ctx, key)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(value, 10), nil
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to get with fetch: %w", err)
	}

	value, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}

// Set stores a counter with TTL through the underlying client.
func (r *RueidisAsideCache) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	cmd := r.client.Client().B().Set().
		Key(r.keyPrefix + key).
		Value(strconv.FormatInt(value, 10)).
		Ex(ttl).
		Build()
	if err := r.client.Client().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a counter.
func (r *RueidisAsideCache) Delete(ctx context.Context, key string) error {
	cmd := r.client.Client().B().Del().Key(r.keyPrefix + key).Build()
	if err := r.client.Client().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RueidisAsideCache) Close() error {
	r.client.Close()
	return nil
}

// Health pings Redis.
func (r *RueidisAsideCache) Health(ctx context.Context) error {
	cmd := r.client.Client().B().Ping().Build()
	if err := r.client.Client().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
