package port

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrCacheMiss возвращается, когда ключа нет в кеше.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for caching terminal session snapshots.
// Terminal snapshots never change, so entries only expire by TTL.
type Cache interface {
	// Get decodes the cached value into dest or returns ErrCacheMiss
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value using the cache's default TTL
	Set(ctx context.Context, key string, value interface{}) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Close closes the cache connection
	Close() error
}

// SessionCacheKey returns the cache key of a terminal session snapshot.
// The key is scoped to the credential the backend accepted, so a cached
// snapshot is only served to callers presenting the same api key.
func SessionCacheKey(sessionID, credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return "quickset:session:" + hex.EncodeToString(sum[:8]) + ":" + sessionID
}
