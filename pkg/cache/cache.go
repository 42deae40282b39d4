// Package cache stores probe snapshots and solved layouts.
//
// # Overview
//
// Probing a live page means launching Chrome and waiting for layout to
// settle; solving a document is cheap but the HTTP API may see the same
// document many times. Both results are plain bytes keyed by a [Keyer], so
// one [Cache] interface covers them:
//
//   - [FileCache]: one JSON file per entry under the user cache directory (CLI)
//   - [RedisCache]: shared entries with server-side expiry (HTTP API)
//   - [NullCache]: never stores anything (--no-cache, tests)
//
// [Instrumented] wraps any Cache and reports hits, misses and writes to the
// observability cache hooks.
//
// # Keys
//
//	k := cache.NewDefaultKeyer()
//	key := k.SolveKey(cache.Hash(docJSON), cache.SolveKeyOpts{Gap: 8, Selected: "c2"})
//
// Keys hash every option that changes the result, so a change to any of them
// is a miss rather than a stale hit.
package cache

import (
	"context"
	"time"
)

// Entry lifetimes.
const (
	// TTLSolve keeps solved layouts. Keys include the document hash.
	TTLSolve = 24 * time.Hour

	// TTLProbe keeps browser probe snapshots. Live pages change.
	TTLProbe = time.Hour
)

// Cache is a byte store with optional expiry.
type Cache interface {
	// Get returns the stored bytes and whether the key was present. A missing
	// or expired key is (nil, false, nil), not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
