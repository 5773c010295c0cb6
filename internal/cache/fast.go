package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sparrowflix/contentcache/internal/metrics"
)

// FastTier is the bounded in-process cache layer: a size-capped mapping from
// full key to Entry, volatile across process restarts. The manager exclusively
// owns its lifecycle; no other component mutates it directly.
type FastTier struct {
	maxEntries int
	metrics    *metrics.Recorder

	mu      sync.Mutex
	entries map[string]Entry
}

// NewFastTier builds an empty fast tier capped at maxEntries.
func NewFastTier(maxEntries int, recorder *metrics.Recorder) *FastTier {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &FastTier{
		maxEntries: maxEntries,
		metrics:    recorder,
		entries:    make(map[string]Entry),
	}
}

// Get returns the live entry for key. Expired entries are lazily deleted and
// reported as absent. The returned entry carries a private copy of the value.
func (f *FastTier) Get(key string, now time.Time) (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[key]
	if !ok {
		return Entry{}, false
	}
	if !entry.Live(now) {
		delete(f.entries, key)
		f.metrics.AddEvictions(metrics.EvictionExpired, 1)
		f.metrics.SetFastTierSize(len(f.entries))
		return Entry{}, false
	}
	return cloneEntry(entry), true
}

// Put inserts or overwrites an entry, evicting first when the insert would
// exceed the capacity bound. The size invariant holds after every call.
func (f *FastTier) Put(key string, entry Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.entries[key]; !exists && len(f.entries) >= f.maxEntries {
		f.evictLocked(time.Now())
	}
	f.entries[key] = entry
	f.metrics.SetFastTierSize(len(f.entries))
}

// evictLocked applies the two-phase policy: drop every expired entry first,
// and only under sustained pressure fall back to removing the oldest 25% of
// entries ranked by creation time. Recency of access is deliberately not
// tracked.
func (f *FastTier) evictLocked(now time.Time) {
	expired := 0
	for key, entry := range f.entries {
		if !entry.Live(now) {
			delete(f.entries, key)
			expired++
		}
	}
	f.metrics.AddEvictions(metrics.EvictionExpired, expired)
	if len(f.entries) < f.maxEntries {
		return
	}

	type aged struct {
		key     string
		created time.Time
	}
	all := make([]aged, 0, len(f.entries))
	for key, entry := range f.entries {
		all = append(all, aged{key: key, created: entry.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].created.Before(all[j].created) })

	victims := len(all) / 4
	if victims < 1 {
		victims = 1
	}
	for _, candidate := range all[:victims] {
		delete(f.entries, candidate.key)
	}
	f.metrics.AddEvictions(metrics.EvictionCapacity, victims)
}

// Delete removes an exact key.
func (f *FastTier) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	f.metrics.SetFastTierSize(len(f.entries))
}

// DeletePattern removes every entry whose key contains pattern as a substring
// and returns the number removed.
func (f *FastTier) DeletePattern(pattern string) int {
	if pattern == "" {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for key := range f.entries {
		if strings.Contains(key, pattern) {
			delete(f.entries, key)
			removed++
		}
	}
	f.metrics.SetFastTierSize(len(f.entries))
	return removed
}

// Flush discards every entry. Used when the policy table is swapped, since a
// policy change alters effective keys and TTLs.
func (f *FastTier) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string]Entry)
	f.metrics.SetFastTierSize(0)
}

// Len reports the current entry count.
func (f *FastTier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Capacity reports the configured bound.
func (f *FastTier) Capacity() int {
	return f.maxEntries
}

// Keys lists the currently held keys in sorted order, for diagnostics only.
func (f *FastTier) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.entries))
	for key := range f.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
