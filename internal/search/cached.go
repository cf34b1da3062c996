package search

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is how long results stay fresh when no TTL is configured.
const DefaultCacheTTL = 10 * time.Minute

// Cached wraps a Provider with an in-process TTL cache keyed by query.
// Failed searches are never cached.
type Cached struct {
	next  Provider
	cache *gocache.Cache
}

// NewCached wraps next with a cache whose entries expire after ttl.
func NewCached(next Provider, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, cache: gocache.New(ttl, 2*ttl)}
}

// Name implements Provider.
func (c *Cached) Name() string { return c.next.Name() }

// Search returns cached results when fresh, otherwise queries the wrapped provider.
func (c *Cached) Search(ctx context.Context, query string) ([]Result, error) {
	if hit, ok := c.cache.Get(query); ok {
		return append([]Result(nil), hit.([]Result)...), nil
	}

	results, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(query, append([]Result(nil), results...))
	return results, nil
}
