package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteByPattern removes every key matching a Redis-style glob with a
	// trailing "*", e.g. "ref:category:*".
	DeleteByPattern(ctx context.Context, pattern string) error
	Close() error
}

// Reference cache keyspace.
const (
	KeyPrefixReferences  = "directory:ref:"
	KeyPrefixCategory    = KeyPrefixReferences + "category:"
	KeyPrefixPlace       = KeyPrefixReferences + "place:"
	KeyPrefixCoordinates = KeyPrefixReferences + "coords:"
	KeyAllCoordinates    = KeyPrefixReferences + "coords-all"
)

// DefaultReferenceTTL applies when no TTL is configured.
const DefaultReferenceTTL = 5 * time.Minute
