package starmap

import (
	"sync/atomic"

	"github.com/goliatone/go-starmap/diag"
	"github.com/goliatone/go-starmap/pkg/metrics"
)

// Default key derivation parameters.
const (
	DefaultCacheThreshold  = 100
	DefaultFingerprintSize = 10
)

// CacheStats summarises cache contents and lookup counters.
type CacheStats struct {
	Entries int
	Keys    []string
	Hits    int64
	Misses  int64
	Skips   int64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// CacheWithStore replaces the default MemoryStore.
func CacheWithStore(store Store) CacheOption {
	return func(c *Cache) {
		if store != nil {
			c.store = store
		}
	}
}

// CacheWithThreshold sets the system count at which keys switch from full
// content to structural fingerprints.
func CacheWithThreshold(threshold int) CacheOption {
	return func(c *Cache) {
		if threshold > 0 {
			c.threshold = threshold
		}
	}
}

// CacheWithFingerprintSize sets how many sorted ids a fingerprint samples.
func CacheWithFingerprintSize(size int) CacheOption {
	return func(c *Cache) {
		if size > 0 {
			c.sample = size
		}
	}
}

// CacheWithDiagnostics reports key derivation failures to sink.
func CacheWithDiagnostics(sink diag.Sink) CacheOption {
	return func(c *Cache) {
		c.diag = diag.OrNop(sink)
	}
}

// CacheWithMetrics counts hits, misses and skips on recorder.
func CacheWithMetrics(recorder metrics.CacheRecorder) CacheOption {
	return func(c *Cache) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// Cache memoizes normalization results by content. Entries are never evicted
// automatically; Clear empties the cache.
type Cache struct {
	store     Store
	threshold int
	sample    int
	diag      diag.Sink
	metrics   metrics.CacheRecorder

	hits   atomic.Int64
	misses atomic.Int64
	skips  atomic.Int64
}

// NewCache constructs a cache backed by a MemoryStore unless configured
// otherwise.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		store:     NewMemoryStore(),
		threshold: DefaultCacheThreshold,
		sample:    DefaultFingerprintSize,
		diag:      diag.Nop(),
		metrics:   metrics.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Key derives the cache key for raw.
func (c *Cache) Key(raw any) (string, error) {
	return deriveKey(raw, c.threshold, c.sample)
}

// Get returns the entry stored under key.
func (c *Cache) Get(key string) (*Dataset, bool) {
	return c.store.Load(key)
}

// Set stores dataset under key, replacing any existing entry.
func (c *Cache) Set(key string, dataset *Dataset) {
	c.store.Save(key, dataset)
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() {
	c.store.Clear()
}

// Stats returns the stored keys and the lookup counters so far.
func (c *Cache) Stats() CacheStats {
	keys := c.store.Keys()
	return CacheStats{
		Entries: len(keys),
		Keys:    keys,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Skips:   c.skips.Load(),
	}
}

// Memoize returns the cached dataset for raw or computes, stores and returns
// it. Input that is not an object, or whose key cannot be derived, is
// computed and returned without caching.
func (c *Cache) Memoize(raw any, compute func(any) *Dataset) *Dataset {
	key, ok := c.lookupKey(raw)
	if !ok {
		return compute(raw)
	}
	if cached, hit := c.lookup(key); hit {
		return cached
	}
	return c.adopt(key, compute(raw))
}

// lookupKey derives a key, reporting a skip when that fails. Non-object
// input is never keyed so each call reaches the normalizer and its warning.
func (c *Cache) lookupKey(raw any) (string, bool) {
	if _, ok := asObject(raw); !ok {
		return "", false
	}
	key, err := c.Key(raw)
	if err != nil {
		c.skips.Add(1)
		c.metrics.CacheSkip()
		c.diag.Warn("cache: key derivation failed, caching skipped", "err", err)
		return "", false
	}
	return key, true
}

func (c *Cache) lookup(key string) (*Dataset, bool) {
	cached, ok := c.store.Load(key)
	if ok {
		c.hits.Add(1)
		c.metrics.CacheHit()
		return cached, true
	}
	c.misses.Add(1)
	c.metrics.CacheMiss()
	return nil, false
}

// adopt inserts dataset unless an entry already exists, returning whichever
// instance the cache now holds. Both the synchronous and the worker paths
// insert through here.
func (c *Cache) adopt(key string, dataset *Dataset) *Dataset {
	actual, _ := c.store.LoadOrSave(key, dataset)
	return actual
}
