// Package cache is the shared key-value caching layer behind the Manifest
// Fetcher's cross-process tier: an in-memory store for single-instance
// runs, Redis for fleets of control-plane instances, and a tiered
// combination of the two. Values are opaque byte slices; encoding is the
// caller's concern.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Cache is a TTL-aware key-value store. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns the value stored under key, or ErrNotFound if the key
	// is absent or past its TTL.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. ttl <= 0 means the entry never
	// expires (or uses the backend's default policy).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
