package chain

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/blockfeed/internal/core/domain"
)

// HeadCache caches the result of HeadHeight to reduce redundant calls when
// several consumers (poller, status server) ask for the head within one
// poll interval.
type HeadCache struct {
	client *Client
	ttl    time.Duration

	mu       sync.RWMutex
	cached   uint64
	cachedAt time.Time
}

// NewHeadCache creates a head cache with the given TTL.
func NewHeadCache(client *Client, ttl time.Duration) *HeadCache {
	return &HeadCache{client: client, ttl: ttl}
}

// HeadHeight returns the cached head if within TTL, otherwise fetches fresh.
func (c *HeadCache) HeadHeight(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	if time.Since(c.cachedAt) < c.ttl && c.cached > 0 {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	head, err := c.client.HeadHeight(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.cached = head
	c.cachedAt = time.Now()
	c.mu.Unlock()

	return head, nil
}

// BlockByNumber passes through to the underlying client.
func (c *HeadCache) BlockByNumber(ctx context.Context, number uint64) (*domain.Block, error) {
	return c.client.BlockByNumber(ctx, number)
}

// Invalidate clears the cache, forcing the next call to fetch fresh.
func (c *HeadCache) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
