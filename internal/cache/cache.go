// Package cache stores analysis results per (file, scope) with a bounded
// entry count and an expire-after-write TTL.
package cache

import (
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/metrics"
)

// Options configures one cache tier
type Options struct {
	Enabled    bool
	MaxEntries int
	TTL        time.Duration
}

// Entry is a cached analysis result stamped with the content version it was
// computed from. Source holds that content; it is shared and must not be
// modified.
type Entry struct {
	Violations []domain.Violation
	Source     []byte
	Version    uint64
	CreatedAt  time.Time
}

// ViolationCache is one cache tier. It is safe for concurrent use.
//
// Each file carries a version floor raised by InvalidateFile. Writes computed
// from a version below the floor, or below the version already stored for the
// key, are rejected so a slow analysis cannot overwrite a newer result.
type ViolationCache struct {
	name    string
	metrics *metrics.Metrics

	mu     sync.RWMutex
	opts   Options
	lru    *expirable.LRU[domain.CacheKey, *Entry]
	floors map[string]uint64
}

// New creates a cache tier
func New(name string, opts Options, m *metrics.Metrics) *ViolationCache {
	return &ViolationCache{
		name:    name,
		metrics: m,
		opts:    opts,
		lru:     newLRU(opts),
		floors:  make(map[string]uint64),
	}
}

// newLRU builds the backing store. The store is always bounded: a size below
// one is raised to one.
func newLRU(opts Options) *expirable.LRU[domain.CacheKey, *Entry] {
	return expirable.NewLRU[domain.CacheKey, *Entry](max(opts.MaxEntries, 1), nil, opts.TTL)
}

// Name returns the tier name
func (c *ViolationCache) Name() string {
	return c.name
}

// Get returns a copy of the cached violations for key
func (c *ViolationCache) Get(key domain.CacheKey) ([]domain.Violation, bool) {
	entry, ok := c.Lookup(key)
	return entry.Violations, ok
}

// Lookup returns the cached entry for key. The violations are a copy.
func (c *ViolationCache) Lookup(key domain.CacheKey) (Entry, bool) {
	c.mu.RLock()
	enabled := c.opts.Enabled
	var (
		entry *Entry
		ok    bool
	)
	if enabled {
		entry, ok = c.lru.Get(key)
	}
	c.mu.RUnlock()

	if !enabled {
		return Entry{}, false
	}
	if !ok {
		c.metrics.CacheMiss(c.name)
		return Entry{}, false
	}
	c.metrics.CacheHit(c.name)
	out := *entry
	out.Violations = slices.Clone(entry.Violations)
	return out, true
}

// Put stores violations computed from the given content version. It reports
// whether the entry was stored.
func (c *ViolationCache) Put(key domain.CacheKey, violations []domain.Violation, version uint64) bool {
	return c.Store(key, Entry{Violations: violations, Version: version})
}

// Store stores an entry. Entries below the file's version floor, or older
// than the entry already stored for key, are rejected.
func (c *ViolationCache) Store(key domain.CacheKey, entry Entry) bool {
	version := entry.Version
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opts.Enabled {
		return false
	}
	if version < c.floors[key.Path] {
		c.metrics.CacheStaleWrite(c.name)
		return false
	}
	if existing, ok := c.lru.Peek(key); ok && existing.Version > version {
		c.metrics.CacheStaleWrite(c.name)
		return false
	}

	evicted := c.lru.Add(key, &Entry{
		Violations: slices.Clone(entry.Violations),
		Source:     entry.Source,
		Version:    version,
		CreatedAt:  time.Now(),
	})
	if evicted {
		c.metrics.CacheEvicted(c.name, "capacity", 1, c.lru.Len())
	}
	c.metrics.CachePut(c.name, c.lru.Len())
	return true
}

// Invalidate removes one entry
func (c *ViolationCache) Invalidate(key domain.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru.Remove(key) {
		c.metrics.CacheEvicted(c.name, "invalidate", 1, c.lru.Len())
	}
}

// InvalidateFile removes every entry of a file and raises its version floor
func (c *ViolationCache) InvalidateFile(path string, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if version > c.floors[path] {
		c.floors[path] = version
	}
	removed := 0
	for _, key := range c.lru.Keys() {
		if key.Path == path && c.lru.Remove(key) {
			removed++
		}
	}
	c.metrics.CacheEvicted(c.name, "invalidate", removed, c.lru.Len())
}

// InvalidateAll drops every entry. Version floors are kept.
func (c *ViolationCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.lru.Len()
	c.lru.Purge()
	c.metrics.CacheEvicted(c.name, "purge", n, 0)
}

// Reconfigure applies new options. Existing entries are dropped.
//
// The store is resized in place when the TTL is unchanged. A new TTL needs a
// new store, and the expirable LRU never stops the expiry goroutine of the
// one it replaces, so each TTL change leaves one idle goroutine behind.
func (c *ViolationCache) Reconfigure(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.lru.Len()
	if opts.TTL == c.opts.TTL {
		c.lru.Purge()
		c.lru.Resize(max(opts.MaxEntries, 1))
	} else {
		c.lru = newLRU(opts)
	}
	c.opts = opts
	c.metrics.CacheEvicted(c.name, "reconfigure", n, 0)
}

// pruneFloors drops version floors at or below version. A floor only
// rejects writes computed from older versions, so once no analysis older
// than version is running those floors can never reject anything.
func (c *ViolationCache) pruneFloors(version uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	pruned := 0
	for path, floor := range c.floors {
		if floor <= version {
			delete(c.floors, path)
			pruned++
		}
	}
	return pruned
}

// floorCount returns the number of files carrying a version floor
func (c *ViolationCache) floorCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.floors)
}

// Options returns the current options
func (c *ViolationCache) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// Len returns the number of live entries
func (c *ViolationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}
