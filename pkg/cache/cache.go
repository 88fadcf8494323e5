// Package cache provides the persistent record store used by the task graph
// to skip work that already ran in a prior run.
//
// Each completed task records a fingerprint (a hash of its identifying
// arguments and target paths) together with the sizes of the files it wrote.
// On a later run, a task whose fingerprint is present and whose targets are
// intact is skipped instead of re-executed.
//
// Three backends are provided:
//   - FileCache: entries stored as files under the workspace (the default)
//   - RedisCache: shared store for workstations re-running one workspace
//   - NullCache: disables skipping entirely
package cache

import (
	"context"
	"time"
)

// Cache is the minimal key-value interface the task graph records
// fingerprints against.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with an optional TTL (0 means no expiry).
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// TaskKey builds the cache key for a task fingerprint. The key hashes the
// task's identifying arguments and target paths so that any change to either
// invalidates the recorded completion.
func TaskKey(name string, args []any, targets []string) string {
	return hashKey("task:"+name, args, targets)
}
