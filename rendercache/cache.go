// Package rendercache stores rendered page payloads keyed by viewer and
// request path, and carries the staleness signal mutating flows emit: after a
// write, the paths whose cached renders are now stale get dropped and are
// recomputed on the next view. Authenticated views carry per-user data, so
// every key is scoped to the viewing identity; one user's render is never
// served to another.
package rendercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss signals that no cached render exists for the path.
var ErrMiss = errors.New("rendercache: miss")

const keyPrefix = "render:"

// Cache is a Redis-backed render cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New wires a render cache. ttl bounds how long a render may be served
// without recomputation even when never invalidated.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached render of path for the viewing identity, or ErrMiss.
func (c *Cache) Get(ctx context.Context, viewerID, path string) ([]byte, error) {
	data, err := c.client.Get(ctx, renderKey(viewerID, path)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("rendercache: get %s: %w", path, err)
	}
	return data, nil
}

// Set stores the render of path for the viewing identity.
func (c *Cache) Set(ctx context.Context, viewerID, path string, data []byte) error {
	if err := c.client.Set(ctx, renderKey(viewerID, path), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("rendercache: set %s: %w", path, err)
	}
	return nil
}

// Invalidate drops the viewer's cached renders for the given paths.
// Invalidating a path with no cached render is not an error.
func (c *Cache) Invalidate(ctx context.Context, viewerID string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, renderKey(viewerID, p))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("rendercache: invalidate: %w", err)
	}

	return nil
}

func renderKey(viewerID, path string) string {
	return keyPrefix + viewerID + ":" + path
}
