package cache

import "errors"

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheUnavailable indicates the cache backend could not be reached
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrInvalidValue indicates a stored value could not be decoded
	ErrInvalidValue = errors.New("cache: invalid value")
)
