package cache

import (
	"math"
	"sync"
	"time"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/metrics"
)

// Tier names
const (
	TierOnTheFly = "on_the_fly"
	TierExplicit = "explicit"
	TierRule     = "rule"
)

// Default tier options
var (
	DefaultOnTheFlyOptions = Options{Enabled: true, MaxEntries: 300, TTL: 1000 * time.Millisecond}
	DefaultExplicitOptions = Options{Enabled: true, MaxEntries: 300, TTL: 10 * time.Minute}
	DefaultRuleOptions     = Options{Enabled: true, MaxEntries: 500, TTL: 10 * time.Minute}
)

// Tiers owns the caches of a session. OnTheFly and Explicit serve file-level
// requests by mode; Rule serves single-rule requests.
type Tiers struct {
	OnTheFly *ViolationCache
	Explicit *ViolationCache
	Rule     *ViolationCache

	// running counts the analyses in flight per snapshot version
	mu      sync.Mutex
	running map[uint64]int
}

// NewTiers creates the cache tiers
func NewTiers(onTheFly, explicit, rule Options, m *metrics.Metrics) *Tiers {
	return &Tiers{
		OnTheFly: New(TierOnTheFly, onTheFly, m),
		Explicit: New(TierExplicit, explicit, m),
		Rule:     New(TierRule, rule, m),
		running:  make(map[uint64]int),
	}
}

// Track registers an analysis about to run on the content version returned
// by snapshot and returns that version with a release func. Version floors
// are pruned on release once no older analysis is still running.
//
// snapshot is called under the tracking lock so a version cannot be read
// and then lose its floor before it is registered.
func (t *Tiers) Track(snapshot func() uint64) (uint64, func()) {
	t.mu.Lock()
	version := snapshot()
	t.running[version]++
	t.mu.Unlock()

	var once sync.Once
	return version, func() {
		once.Do(func() { t.release(version) })
	}
}

func (t *Tiers) release(version uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running[version]--; t.running[version] <= 0 {
		delete(t.running, version)
	}

	oldest := uint64(math.MaxUint64)
	for v := range t.running {
		oldest = min(oldest, v)
	}
	// floors equal to the oldest running version reject nothing it writes
	for _, c := range t.all() {
		c.pruneFloors(oldest)
	}
}

// For returns the tier serving a mode
func (t *Tiers) For(mode domain.Mode) *ViolationCache {
	if mode == domain.ModeExplicit {
		return t.Explicit
	}
	return t.OnTheFly
}

func (t *Tiers) all() []*ViolationCache {
	return []*ViolationCache{t.OnTheFly, t.Explicit, t.Rule}
}

// InvalidateFile invalidates a file in every tier
func (t *Tiers) InvalidateFile(path string, version uint64) {
	for _, c := range t.all() {
		c.InvalidateFile(path, version)
	}
}

// InvalidateAll empties every tier
func (t *Tiers) InvalidateAll() {
	for _, c := range t.all() {
		c.InvalidateAll()
	}
}
