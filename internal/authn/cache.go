package authn

import (
	"sync"
	"time"
)

// cacheEntry is a cached validation result for a single token. usageCount
// only ever increases while the entry is alive; the effective TTL grows with
// it up to the configured ceiling so frequently used tokens are retained
// longer.
type cacheEntry struct {
	principal  Principal
	createdAt  time.Time
	lastUsedAt time.Time
	usageCount int64
}

// tokenCache is an in-memory cache of validation results keyed by the raw
// token string. All state is process-local and best-effort: dropping it only
// costs extra remote validations, never incorrect results.
//
// Every method holds the mutex for an O(1) critical section only; no I/O or
// blocking work happens under the lock.
type tokenCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry

	baseTTL time.Duration
	maxTTL  time.Duration
	maxIdle time.Duration
}

func newTokenCache(baseTTL, maxTTL, maxIdle time.Duration) *tokenCache {
	return &tokenCache{
		entries: make(map[string]*cacheEntry),
		baseTTL: baseTTL,
		maxTTL:  maxTTL,
		maxIdle: maxIdle,
	}
}

// effectiveTTL computes the adaptive TTL for an entry: the base TTL scaled
// linearly by usage count, capped at the hard ceiling.
func (c *tokenCache) effectiveTTL(usageCount int64) time.Duration {
	ttl := time.Duration(usageCount) * c.baseTTL
	if ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	return ttl
}

// expired reports whether an entry is past its adaptive TTL or has been idle
// beyond the maximum idle window, whichever comes first.
func (c *tokenCache) expired(e *cacheEntry, now time.Time) bool {
	if now.Sub(e.createdAt) > c.effectiveTTL(e.usageCount) {
		return true
	}
	return now.Sub(e.lastUsedAt) > c.maxIdle
}

// get returns the cached Principal for a token if a live entry exists,
// incrementing its usage counter and refreshing its last-used timestamp. A
// dead entry is evicted on the spot. The read-and-increment is atomic with
// respect to concurrent evictions.
func (c *tokenCache) get(token string) (Principal, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[token]
	if !ok {
		return Principal{}, false
	}
	if c.expired(e, now) {
		delete(c.entries, token)
		return Principal{}, false
	}

	e.usageCount++
	e.lastUsedAt = now

	return e.principal, true
}

// put stores a fresh validation result. If a prior entry exists for the same
// token its usage count is carried over so a re-validated hot token keeps its
// extended retention.
func (c *tokenCache) put(token string, p Principal) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	usage := int64(1)
	if prev, ok := c.entries[token]; ok && prev.usageCount > usage {
		usage = prev.usageCount
	}

	c.entries[token] = &cacheEntry{
		principal:  p,
		createdAt:  now,
		lastUsedAt: now,
		usageCount: usage,
	}
}

// remove drops a token's entry immediately. Used when a request proves the
// token is expired.
func (c *tokenCache) remove(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, token)
}

// sweep evicts all dead entries and returns how many were removed. Called
// periodically by the validator's background sweeper.
func (c *tokenCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for token, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, token)
			removed++
		}
	}
	return removed
}

// size returns the current number of live entries.
func (c *tokenCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
