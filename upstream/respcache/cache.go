// Package respcache memoizes raw wire exchanges between the upstream
// resolver and a specific name server, keyed by (question, server address).
// It exists to cut down on repeated NS/A glue lookups during a single
// recursive descent and across nearby queries; it has nothing to do with
// the chain resolver's contract-existence/record cache.
package respcache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/miekg/dns"
)

type cacheKey struct {
	addr string
	q    dns.Question
}

type cacheEntry struct {
	msg     *dns.Msg
	addedAt time.Time
	ttl     time.Duration
}

// sweepInterval bounds how long the underlying LRU holds an entry before its
// own background sweep reclaims it. Actual freshness is enforced per entry
// in Lookup against the TTL passed to Update, since responses in this cache
// carry wildly different real TTLs (long-lived NS glue next to a
// short-lived negative answer) that a single cache-wide TTL can't express.
const sweepInterval = 24 * time.Hour

// Cache is a capacity-bounded, concurrency-safe cache of raw DNS responses,
// built on the same expirable LRU the rest of this repository uses for its
// bounded caches.
type Cache struct {
	lru *lru.LRU[cacheKey, cacheEntry]
}

// New builds a Cache holding at most maxSize responses.
func New(maxSize int) *Cache {
	return &Cache{lru: lru.NewLRU[cacheKey, cacheEntry](maxSize, nil, sweepInterval)}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Lookup returns a copy of the cached response for (q, addr), the time spent
// looking it up, and its age. The response is nil, and the age negative, on
// a miss or an entry whose own TTL has elapsed.
func (c *Cache) Lookup(q dns.Question, addr string) (*dns.Msg, time.Duration, time.Duration) {
	start := time.Now()
	key := cacheKey{addr: addr, q: q}

	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, time.Since(start), -1 * time.Second
	}

	if entry.addedAt.Add(entry.ttl).Before(time.Now()) {
		c.lru.Remove(key)
		return nil, time.Since(start), -1 * time.Second
	}

	return entry.msg.Copy(), time.Since(start), time.Since(entry.addedAt)
}

// Update caches resp for (q, addr), valid for ttl.
func (c *Cache) Update(q dns.Question, addr string, resp *dns.Msg, ttl time.Duration) {
	if resp == nil {
		panic("nil response")
	}

	key := cacheKey{addr: addr, q: q}
	c.lru.Add(key, cacheEntry{msg: resp.Copy(), addedAt: time.Now(), ttl: ttl})
}
