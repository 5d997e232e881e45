package policy

import (
	"fmt"
	"sync"
	"time"
)

type cacheEntry struct {
	decision  Decision
	expiresAt time.Time
}

// Cache holds recent decisions keyed by (subject, intent, fingerprint).
// Entries expire after the decision's TTL; expired entries are pruned
// lazily on read.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func cacheKey(q Query) string {
	return fmt.Sprintf("%s|%s|%s", q.Subject, q.Intent, q.Fingerprint)
}

func (c *Cache) Get(q Query) (Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(q)
	entry, ok := c.entries[key]
	if !ok {
		return Decision{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return Decision{}, false
	}
	return entry.decision, true
}

func (c *Cache) Put(q Query, d Decision) {
	if d.TTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(q)] = cacheEntry{
		decision:  d,
		expiresAt: c.now().Add(d.TTL),
	}
}

// Invalidate drops every cached decision for a subject. Used when the
// subject's token is revoked mid-session.
func (c *Cache) Invalidate(subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := subject + "|"
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
