package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/metrics"
)

func violations(rule string, n int) []domain.Violation {
	out := make([]domain.Violation, n)
	for i := range out {
		out[i] = domain.Violation{RuleID: rule, BeginLine: i + 1, EndLine: i + 1, Priority: domain.PriorityMajor}
	}
	return out
}

func key(path string) domain.CacheKey {
	return domain.CacheKey{Path: path, Scope: "recommended"}
}

func TestViolationCache_PutGet(t *testing.T) {
	c := New(TierExplicit, Options{Enabled: true, MaxEntries: 10, TTL: time.Minute}, nil)

	_, ok := c.Get(key("a.js"))
	assert.False(t, ok)

	require.True(t, c.Put(key("a.js"), violations("no-var", 2), 0))

	got, ok := c.Get(key("a.js"))
	require.True(t, ok)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, c.Len())
}

func TestViolationCache_EmptyResultIsCached(t *testing.T) {
	c := New(TierExplicit, DefaultExplicitOptions, nil)
	require.True(t, c.Put(key("clean.js"), nil, 0))

	got, ok := c.Get(key("clean.js"))
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestViolationCache_GetReturnsCopy(t *testing.T) {
	c := New(TierExplicit, DefaultExplicitOptions, nil)
	c.Put(key("a.js"), violations("no-var", 1), 0)

	got, _ := c.Get(key("a.js"))
	got[0].RuleID = "mutated"

	again, _ := c.Get(key("a.js"))
	assert.Equal(t, "no-var", again[0].RuleID)
}

func TestViolationCache_Expiry(t *testing.T) {
	c := New(TierOnTheFly, Options{Enabled: true, MaxEntries: 10, TTL: 30 * time.Millisecond}, nil)
	c.Put(key("a.js"), violations("no-var", 1), 0)

	_, ok := c.Get(key("a.js"))
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)

	_, ok = c.Get(key("a.js"))
	assert.False(t, ok, "entry should expire after its TTL")
}

func TestViolationCache_CapacityEviction(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	c := New(TierExplicit, Options{Enabled: true, MaxEntries: 2, TTL: time.Minute}, m)

	c.Put(key("a.js"), nil, 0)
	c.Put(key("b.js"), nil, 0)
	c.Get(key("a.js"))
	c.Put(key("c.js"), nil, 0)

	_, ok := c.Get(key("b.js"))
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(key("a.js"))
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEvictionsTotal.WithLabelValues(TierExplicit, "capacity")))
}

func TestViolationCache_Disabled(t *testing.T) {
	c := New(TierOnTheFly, Options{Enabled: false, MaxEntries: 10, TTL: time.Minute}, nil)

	assert.False(t, c.Put(key("a.js"), violations("no-var", 1), 0))
	_, ok := c.Get(key("a.js"))
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestViolationCache_InvalidateFile(t *testing.T) {
	c := New(TierExplicit, DefaultExplicitOptions, nil)
	c.Put(domain.CacheKey{Path: "a.js", Scope: "recommended"}, nil, 0)
	c.Put(domain.CacheKey{Path: "a.js", Scope: "security"}, nil, 0)
	c.Put(domain.CacheKey{Path: "b.js", Scope: "recommended"}, nil, 0)

	c.InvalidateFile("a.js", 1)

	_, ok := c.Get(domain.CacheKey{Path: "a.js", Scope: "recommended"})
	assert.False(t, ok)
	_, ok = c.Get(domain.CacheKey{Path: "a.js", Scope: "security"})
	assert.False(t, ok)
	_, ok = c.Get(domain.CacheKey{Path: "b.js", Scope: "recommended"})
	assert.True(t, ok)
}

func TestViolationCache_RejectsStaleWrites(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	c := New(TierExplicit, DefaultExplicitOptions, m)

	// analysis started at version 0, file changed to version 1 meanwhile
	c.InvalidateFile("a.js", 1)
	assert.False(t, c.Put(key("a.js"), violations("no-var", 3), 0))
	_, ok := c.Get(key("a.js"))
	assert.False(t, ok)

	// newer result stored, then an older one arrives
	require.True(t, c.Put(key("a.js"), violations("no-var", 1), 2))
	assert.False(t, c.Put(key("a.js"), violations("no-var", 5), 1))

	got, ok := c.Get(key("a.js"))
	require.True(t, ok)
	assert.Len(t, got, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheStaleWritesTotal.WithLabelValues(TierExplicit)))
}

func TestViolationCache_InvalidateAllKeepsFloors(t *testing.T) {
	c := New(TierExplicit, DefaultExplicitOptions, nil)
	c.InvalidateFile("a.js", 4)
	c.Put(key("b.js"), nil, 0)

	c.InvalidateAll()

	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Put(key("a.js"), nil, 3))
	assert.True(t, c.Put(key("a.js"), nil, 4))
}

func TestViolationCache_Reconfigure(t *testing.T) {
	c := New(TierOnTheFly, DefaultOnTheFlyOptions, nil)
	c.Put(key("a.js"), nil, 0)

	c.Reconfigure(Options{Enabled: false, MaxEntries: 5, TTL: time.Second})

	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Options().Enabled)
	assert.False(t, c.Put(key("a.js"), nil, 0))

	c.Reconfigure(Options{Enabled: true, MaxEntries: 5, TTL: time.Second})
	assert.True(t, c.Put(key("a.js"), nil, 0))
}

func TestViolationCache_ConcurrentAccess(t *testing.T) {
	c := New(TierExplicit, Options{Enabled: true, MaxEntries: 50, TTL: time.Minute}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				path := []string{"a.js", "b.js", "c.js"}[j%3]
				switch j % 4 {
				case 0:
					c.Put(key(path), violations("no-var", worker), uint64(j))
				case 1:
					c.Get(key(path))
				case 2:
					c.InvalidateFile(path, uint64(j))
				default:
					c.Len()
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 3)
}

func TestTiers(t *testing.T) {
	tiers := NewTiers(DefaultOnTheFlyOptions, DefaultExplicitOptions, DefaultRuleOptions, nil)

	assert.Same(t, tiers.OnTheFly, tiers.For(domain.ModeOnTheFly))
	assert.Same(t, tiers.Explicit, tiers.For(domain.ModeExplicit))

	tiers.OnTheFly.Put(key("a.js"), nil, 0)
	tiers.Explicit.Put(key("a.js"), nil, 0)
	tiers.Rule.Put(domain.CacheKey{Path: "a.js", Scope: domain.ScopeForRule("no-var")}, nil, 0)
	tiers.Explicit.Put(key("b.js"), nil, 0)

	tiers.InvalidateFile("a.js", 1)

	assert.Equal(t, 0, tiers.OnTheFly.Len())
	assert.Equal(t, 1, tiers.Explicit.Len())
	assert.Equal(t, 0, tiers.Rule.Len())

	tiers.InvalidateAll()
	assert.Equal(t, 0, tiers.Explicit.Len())
}

func TestTiers_TrackPrunesFloorsAfterRelease(t *testing.T) {
	tiers := NewTiers(DefaultOnTheFlyOptions, DefaultExplicitOptions, DefaultRuleOptions, nil)

	// An analysis of a.js starts at version 1, then the file changes twice
	version, release := tiers.Track(func() uint64 { return 1 })
	assert.Equal(t, uint64(1), version)
	tiers.InvalidateFile("a.js", 2)
	tiers.InvalidateFile("b.js", 3)

	_, other := tiers.Track(func() uint64 { return 3 })
	other()
	assert.Equal(t, 2, tiers.Explicit.floorCount(), "floors newer than a running analysis are kept")
	assert.False(t, tiers.Explicit.Put(key("a.js"), nil, version), "the running analysis cannot write")

	release()
	release()
	assert.Equal(t, 0, tiers.Explicit.floorCount())
	assert.Equal(t, 0, tiers.OnTheFly.floorCount())
	assert.Equal(t, 0, tiers.Rule.floorCount())
}

func TestTiers_TrackKeepsFloorsOfOlderAnalyses(t *testing.T) {
	tiers := NewTiers(DefaultOnTheFlyOptions, DefaultExplicitOptions, DefaultRuleOptions, nil)

	_, oldest := tiers.Track(func() uint64 { return 2 })
	tiers.InvalidateFile("a.js", 1)
	tiers.InvalidateFile("b.js", 5)

	_, newer := tiers.Track(func() uint64 { return 5 })
	newer()

	assert.Equal(t, 1, tiers.Explicit.floorCount(), "only floors at or below the oldest running version go")
	assert.False(t, tiers.Explicit.Put(key("b.js"), nil, 2))
	oldest()
}

func TestViolationCache_StoreKeepsSource(t *testing.T) {
	c := New(TierExplicit, DefaultExplicitOptions, nil)
	source := []byte("var a;\n")
	require.True(t, c.Store(key("a.js"), Entry{Violations: violations("no-var", 1), Source: source, Version: 7}))

	entry, ok := c.Lookup(key("a.js"))
	require.True(t, ok)
	assert.Equal(t, source, entry.Source)
	assert.Equal(t, uint64(7), entry.Version)
	assert.Len(t, entry.Violations, 1)
}

func TestViolationCache_ZeroMaxEntriesStaysBounded(t *testing.T) {
	c := New(TierExplicit, Options{Enabled: true, MaxEntries: 0, TTL: time.Minute}, nil)
	c.Put(key("a.js"), nil, 0)
	c.Put(key("b.js"), nil, 0)
	assert.Equal(t, 1, c.Len())
}

func TestViolationCache_ReconfigureResizesInPlace(t *testing.T) {
	c := New(TierExplicit, Options{Enabled: true, MaxEntries: 10, TTL: time.Minute}, nil)
	store := c.lru

	c.Reconfigure(Options{Enabled: true, MaxEntries: 2, TTL: time.Minute})
	assert.Same(t, store, c.lru, "an unchanged TTL keeps the store")
	for _, p := range []string{"a.js", "b.js", "c.js"} {
		c.Put(key(p), nil, 0)
	}
	assert.Equal(t, 2, c.Len())

	c.Reconfigure(Options{Enabled: true, MaxEntries: 2, TTL: time.Second})
	assert.NotSame(t, store, c.lru)
	assert.Equal(t, 0, c.Len())
}
