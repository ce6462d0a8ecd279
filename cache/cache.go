// Package cache implements the chain resolver's two-tier memoization layer:
// an existence cache (is this contract account even deployed?) and a record
// cache (what did its dns_query view call last return for this name and
// type?). Both are capacity-bounded, TTL-expiring, and safe for concurrent
// use by many resolutions at once.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chainresolve/dnsbridge/records"
)

const (
	// DefaultCapacity is the per-map entry limit absent explicit configuration.
	DefaultCapacity = 10_000
	// DefaultTTL is the per-map expiry absent explicit configuration.
	DefaultTTL = 300 * time.Second
)

// RecordKey identifies one (contract, name, record type) record-cache slot.
// RecordType must already be normalized (upper-cased); callers building a
// RecordKey from user input should route it through records.StoredRecord's
// Normalize convention first.
type RecordKey struct {
	ContractID string
	Name       string
	Type       string
}

// TwoTier is the C2 cache: an existence map and a records map, each with its
// own capacity and TTL. The zero value is not usable; construct with New.
//
// TwoTier does not use a stored record's own TTL field to drive eviction —
// that field governs downstream DNS clients, while the cache's own TTL
// governs how often this process re-hits the chain. There is no Clone
// method: handles are copies of the same *TwoTier pointer, so they share the
// backing maps and every handle observes the same writes.
type TwoTier struct {
	existence *lru.LRU[string, bool]
	recs      *lru.LRU[RecordKey, []records.StoredRecord]

	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
}

// Option configures a TwoTier at construction.
type Option func(*config)

type config struct {
	capacity   int
	ttl        time.Duration
	registerer prometheus.Registerer
}

// WithCapacity overrides DefaultCapacity for both maps.
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}

// WithTTL overrides DefaultTTL for both maps.
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.ttl = d }
}

// WithRegisterer registers the cache's hit/miss counters with reg instead of
// the default Prometheus registry. Passing a nil Registerer disables
// registration (useful in tests that construct many caches).
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}

// New builds a TwoTier cache with the given options applied over the
// defaults (10,000-entry capacity, 300s TTL, default Prometheus registry).
func New(opts ...Option) *TwoTier {
	cfg := config{
		capacity:   DefaultCapacity,
		ttl:        DefaultTTL,
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &TwoTier{
		existence: lru.NewLRU[string, bool](cfg.capacity, nil, cfg.ttl),
		recs:      lru.NewLRU[RecordKey, []records.StoredRecord](cfg.capacity, nil, cfg.ttl),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dnsbridge_cache_hits_total",
			Help: "Two-tier cache hits, partitioned by map (existence, records).",
		}, []string{"map"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dnsbridge_cache_misses_total",
			Help: "Two-tier cache misses, partitioned by map (existence, records).",
		}, []string{"map"}),
	}

	if cfg.registerer != nil {
		cfg.registerer.MustRegister(t.hits, t.misses)
	}

	return t
}

// GetExistence reports whether id's existence is cached, and the cached
// value when it is. The second return is false when nothing is cached.
func (t *TwoTier) GetExistence(id string) (exists, ok bool) {
	v, ok := t.existence.Get(id)
	t.observe("existence", ok)
	return v, ok
}

// PutExistence caches whether contract id exists, restarting its TTL.
func (t *TwoTier) PutExistence(id string, exists bool) {
	t.existence.Add(id, exists)
}

// GetRecords returns the cached record set for key, and whether it was
// present. A present-but-empty slice is a cached negative, distinct from an
// absent key.
func (t *TwoTier) GetRecords(key RecordKey) (recs []records.StoredRecord, ok bool) {
	v, ok := t.recs.Get(key)
	t.observe("records", ok)
	return v, ok
}

// PutRecords caches recs (which may be empty) for key, restarting its TTL.
func (t *TwoTier) PutRecords(key RecordKey, recs []records.StoredRecord) {
	if recs == nil {
		recs = []records.StoredRecord{}
	}
	t.recs.Add(key, recs)
}

func (t *TwoTier) observe(mapName string, hit bool) {
	if hit {
		t.hits.WithLabelValues(mapName).Inc()
	} else {
		t.misses.WithLabelValues(mapName).Inc()
	}
}
