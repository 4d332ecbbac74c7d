package cayenne

import (
	"context"
	"strconv"
	"time"
)

// Cache is the interface for the shared query result cache.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey generates a cache key for a query. Keys of one entity share the
// Entity prefix so a commit can invalidate them with DeletePrefix.
type CacheKey struct {
	Entity    string
	Dialect   string
	Qualifier string
	OrderBy   string
	Limit     int
	Offset    int
}

// Prefix returns the invalidation prefix of the entity.
func (k CacheKey) Prefix() string {
	return k.Entity + ":"
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return k.Prefix() + k.Dialect + ":" + k.Qualifier + ":" + k.OrderBy + ":" +
		strconv.Itoa(k.Limit) + ":" + strconv.Itoa(k.Offset)
}
