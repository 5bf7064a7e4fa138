// Package cache stores finished runs so that repeating a seeded run with the
// same inputs and options is answered without searching again.
//
// Runs are deterministic for a fixed seed, so a cached result is exactly the
// result a fresh run would produce.
//
// Backends:
//   - [NullCache]: caching disabled
//   - [FileCache]: one file per entry under a directory, for the CLI
//   - [RedisCache]: shared cache for the HTTP API
//
// Keys come from a [Keyer]. [DefaultKeyer] hashes the input digest together
// with every option that influences the outcome.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long cached runs are kept.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is a byte-oriented key-value store with expiry.
type Cache interface {
	// Get returns the value for key. hit is false on a miss; a miss is not
	// an error.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
