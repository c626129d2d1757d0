package revocation

import (
	"context"
	"sync"
	"time"
)

const defaultNegativeTTL = 2 * time.Second

type cacheEntry struct {
	revoked bool
	until   time.Time
}

// Cached wraps a List with a small in-process lookup cache so the access
// validation hot path does not hit the backend on every request.
//
// Positive results are cached until the blacklist entry itself would
// expire. Negative results are cached only for negativeTTL, which bounds
// how long a freshly revoked token can still pass validation on a node
// that cached the miss.
type Cached struct {
	inner       List
	negativeTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewCached wraps inner. A non-positive negativeTTL uses the 2s default.
func NewCached(inner List, negativeTTL time.Duration) *Cached {
	if negativeTTL <= 0 {
		negativeTTL = defaultNegativeTTL
	}
	return &Cached{
		inner:       inner,
		negativeTTL: negativeTTL,
		cache:       make(map[string]cacheEntry),
	}
}

// Add writes through to the backend and primes the cache, so revocations
// performed by this process take effect locally without waiting out a
// cached miss.
func (c *Cached) Add(ctx context.Context, entry Entry) error {
	if err := c.inner.Add(ctx, entry); err != nil {
		return err
	}

	c.mu.Lock()
	c.cache[entry.JTI] = cacheEntry{revoked: true, until: entry.ExpiresAt}
	c.mu.Unlock()
	return nil
}

func (c *Cached) IsRevoked(ctx context.Context, jti string) (bool, error) {
	c.mu.RLock()
	cached, ok := c.cache[jti]
	c.mu.RUnlock()
	if ok && time.Now().Before(cached.until) {
		return cached.revoked, nil
	}

	revoked, err := c.inner.IsRevoked(ctx, jti)
	if err != nil {
		// Backend errors are never cached.
		return false, err
	}

	until := time.Now().Add(c.negativeTTL)
	c.mu.Lock()
	c.cache[jti] = cacheEntry{revoked: revoked, until: until}
	c.mu.Unlock()
	return revoked, nil
}

func (c *Cached) PurgeExpired(ctx context.Context) (int, error) {
	now := time.Now()
	c.mu.Lock()
	for jti, entry := range c.cache {
		if !now.Before(entry.until) {
			delete(c.cache, jti)
		}
	}
	c.mu.Unlock()

	return c.inner.PurgeExpired(ctx)
}
