// Package cache provides an LRU read-through cache whose concurrent misses for one key
// share a single load.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// LoaderCache maps string-like keys to values produced by a load callback. Failed loads are
// not cached, so the next Get retries.
type LoaderCache[K ~string, V any] struct {
	lru   *lru.Cache[K, V]
	group singleflight.Group
}

// NewLoaderCache creates a cache holding at most maxEntries values.
func NewLoaderCache[K ~string, V any](maxEntries int) (*LoaderCache[K, V], error) {
	l, err := lru.New[K, V](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	return &LoaderCache[K, V]{lru: l}, nil
}

// Get returns the cached value for key, or runs load once for all concurrent callers of the
// same key. hit reports whether the value was already cached.
//
// load runs detached from the caller's cancellation so one caller giving up does not fail the
// others; load must bound itself (e.g. with its own timeout). A caller whose ctx ends first
// returns ctx.Err() while the load continues and fills the cache.
func (c *LoaderCache[K, V]) Get(
	ctx context.Context, key K, load func(context.Context, K) (V, error),
) (value V, hit bool, err error) {
	if v, ok := c.lru.Get(key); ok {
		return v, true, nil
	}

	loadCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(string(key), func() (any, error) {
		v, err := load(loadCtx, key)
		if err != nil {
			return nil, err
		}

		c.lru.Add(key, v)

		return v, nil
	})

	select {
	case <-ctx.Done():
		return value, false, fmt.Errorf("wait for load: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return value, false, res.Err //nolint:wrapcheck // load error returned as is
		}

		v, _ := res.Val.(V)

		return v, false, nil
	}
}

// Len returns the number of cached entries.
func (c *LoaderCache[K, V]) Len() int {
	return c.lru.Len()
}
