package catalog

import (
	"context"
	"sync"
	"time"

	"taskcart-api/domain"
)

// Fetcher is the read side of the catalog source. Implemented by *Client.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.ProductsPage, error)
}

// Cache is a read-through cache over a Fetcher. A cached page is served
// until it goes stale, then the next read refetches. Concurrent reads share
// one in-flight fetch, and a superseded fetch's result is discarded:
// whichever fetch was issued last wins.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration

	mu        sync.Mutex
	page      domain.ProductsPage
	fetchedAt time.Time
	loaded    bool
	gen       uint64
}

// NewCache wraps fetcher with a stale-time of ttl. A ttl of zero or less
// means the page is always stale: every read refetches.
func NewCache(fetcher Fetcher, ttl time.Duration) *Cache {
	if fetcher == nil {
		panic("catalog.NewCache: fetcher is nil")
	}
	return &Cache{fetcher: fetcher, ttl: ttl}
}

// Products returns the cached page while fresh, refetching otherwise.
// Cart and board mutations never wait on this: only catalog reads do.
func (c *Cache) Products(ctx context.Context) (domain.ProductsPage, error) {
	c.mu.Lock()
	if c.loaded && c.ttl > 0 && time.Since(c.fetchedAt) < c.ttl {
		page := c.page
		c.mu.Unlock()
		return page, nil
	}
	c.mu.Unlock()
	return c.refresh(ctx)
}

// Refresh forces a refetch, bypassing the stale-time. It is the manual retry
// path after a terminal fetch failure.
func (c *Cache) Refresh(ctx context.Context) (domain.ProductsPage, error) {
	return c.refresh(ctx)
}

func (c *Cache) refresh(ctx context.Context) (domain.ProductsPage, error) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	page, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return domain.ProductsPage{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.page = page
		c.fetchedAt = time.Now()
		c.loaded = true
		return page, nil
	}
	// A newer fetch replaced this one; serve the state it left behind when
	// it already completed, otherwise hand back our own result without
	// caching it.
	if c.loaded {
		return c.page, nil
	}
	return page, nil
}
