package mergerequests

import (
	"context"
	"sync"
	"time"

	"github.com/mergelab/gitlab-sync/internal/gitlab"
	"github.com/mergelab/gitlab-sync/internal/metrics"
	"github.com/mergelab/gitlab-sync/internal/model"
	"github.com/mergelab/gitlab-sync/lru"
)

// Key identifies one cached lookup: the merge requests of one source
// branch in one project.
type Key struct {
	Coord        model.ProjectCoord
	SourceBranch string
}

// Cache memoizes merge-request lookups with a sliding TTL and an LRU
// capacity bound. Concurrent misses for the same key are collapsed into a
// single upstream fetch; the other callers wait for its result.
type Cache struct {
	entries *lru.Cache[Key, []gitlab.MergeRequest]
	metrics *metrics.Metrics

	mu       sync.Mutex
	inflight map[Key]*inflightCall
}

type inflightCall struct {
	done chan struct{}
	val  []gitlab.MergeRequest
	err  error
}

// NewCache creates a cache with the given capacity and sliding TTL.
// metrics may be nil.
func NewCache(capacity int, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		entries:  lru.NewWithTTL[Key, []gitlab.MergeRequest](capacity, ttl),
		metrics:  m,
		inflight: make(map[Key]*inflightCall),
	}
}

// Get returns the cached merge requests for the key or runs fetch to load
// them. Only successful fetches are cached. When another fetch for the same
// key is already running, Get waits for it instead of issuing a duplicate
// request, honoring ctx while waiting.
func (c *Cache) Get(ctx context.Context, key Key, fetch func(ctx context.Context) ([]gitlab.MergeRequest, error)) ([]gitlab.MergeRequest, error) {
	if val, ok := c.entries.Get(key); ok {
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return val, nil
	}

	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.val, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	call.val, call.err = fetch(ctx)
	if call.err == nil {
		c.entries.Put(key, call.val)
	}

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(call.done)

	return call.val, call.err
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key Key) {
	c.entries.Delete(key)
}

// InvalidateAll drops every cached entry, forcing a re-fetch on next
// access.
func (c *Cache) InvalidateAll() {
	c.entries.Clear()
}

// SetClock replaces the cache's time source (for testing).
func (c *Cache) SetClock(now func() time.Time) {
	c.entries.SetClock(now)
}
