package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sparrowflix/contentcache/internal/metrics"
)

// preloadConcurrency bounds the fan-out of bulk population so a large warm
// list cannot stampede the durable tier or the source.
const preloadConcurrency = 8

// ProviderFunc fetches a value from the backing source on a cache miss. The
// bool result distinguishes "absent" from an empty value.
type ProviderFunc func(ctx context.Context) ([]byte, bool, error)

// Options configures a Manager. Durable is required; a nil Logger falls back
// to slog.Default and a nil Metrics recorder disables instrumentation.
type Options struct {
	Durable    DurableTier
	Policies   *PolicyTable
	MaxEntries int
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
}

// Manager orchestrates the fallback chain across the fast tier, the durable
// tier, and the source provider, writing through both tiers on population.
//
// Concurrent populate operations on the same key are not deduplicated: two
// concurrent misses may both invoke the provider and both write the result.
// Last write wins on the fast tier and both writes converge to the same
// TTL-bounded state on the durable tier. Callers needing single-flight
// semantics must layer them on top.
type Manager struct {
	durable DurableTier
	fast    *FastTier
	logger  *slog.Logger
	metrics *metrics.Recorder

	mu       sync.RWMutex
	policies *PolicyTable
}

// NewManager wires the tiers together. The Manager exclusively owns the fast
// tier it creates here.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policies := opts.Policies
	if policies == nil {
		policies = NewPolicyTable(nil)
	}
	return &Manager{
		durable:  opts.Durable,
		fast:     NewFastTier(opts.MaxEntries, opts.Metrics),
		logger:   logger.With(slog.String("agent", "cache_manager")),
		metrics:  opts.Metrics,
		policies: policies,
	}
}

func (m *Manager) policyTable() *PolicyTable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policies
}

// ReplacePolicies swaps in a new policy table and flushes the fast tier, since
// a policy change alters effective keys and TTLs. The durable tier is left to
// converge through its own expiry.
func (m *Manager) ReplacePolicies(table *PolicyTable) {
	if table == nil {
		return
	}
	m.mu.Lock()
	m.policies = table
	m.mu.Unlock()
	m.fast.Flush()
	m.logger.Info("policy table replaced, fast tier flushed")
}

// Get walks the fallback chain: fast tier, durable tier (back-filling the fast
// tier on a hit), then the provider when one is supplied. A durable tier I/O
// failure is logged and treated as a miss for that layer; a provider error is
// the only failure propagated to the caller.
func (m *Manager) Get(ctx context.Context, key, contentType string, provider ProviderFunc) ([]byte, bool, error) {
	policy := m.policyTable().Resolve(contentType)
	fullKey := policy.Prefix + key

	start := time.Now()
	if entry, ok := m.fast.Get(fullKey, start); ok {
		m.metrics.ObserveLookup(metrics.TierFast, contentType, metrics.LookupHit, time.Since(start))
		return entry.Value, true, nil
	}
	m.metrics.ObserveLookup(metrics.TierFast, contentType, metrics.LookupMiss, time.Since(start))

	durableStart := time.Now()
	payload, ok, err := m.durable.Get(ctx, fullKey)
	switch {
	case err != nil:
		m.metrics.ObserveLookup(metrics.TierDurable, contentType, metrics.LookupError, time.Since(durableStart))
		m.logger.Warn("durable tier lookup failed, treating as miss",
			slog.String("key", fullKey), slog.Any("error", err))
	case ok:
		m.metrics.ObserveLookup(metrics.TierDurable, contentType, metrics.LookupHit, time.Since(durableStart))
		m.fast.Put(fullKey, newEntry(payload, time.Now(), policy.TTL))
		return payload, true, nil
	default:
		m.metrics.ObserveLookup(metrics.TierDurable, contentType, metrics.LookupMiss, time.Since(durableStart))
	}

	if provider == nil {
		return nil, false, nil
	}
	return m.populate(ctx, fullKey, contentType, policy, provider)
}

// populate invokes the provider and writes a non-absent result through both
// tiers. Provider errors propagate unchanged.
func (m *Manager) populate(ctx context.Context, fullKey, contentType string, policy Policy, provider ProviderFunc) ([]byte, bool, error) {
	value, ok, err := provider(ctx)
	if err != nil {
		m.metrics.ObserveProviderCall(contentType, metrics.ProviderError)
		return nil, false, err
	}
	if !ok {
		m.metrics.ObserveProviderCall(contentType, metrics.ProviderAbsent)
		return nil, false, nil
	}
	m.metrics.ObserveProviderCall(contentType, metrics.ProviderFetched)
	m.writeThrough(ctx, fullKey, contentType, policy, value)
	return value, true, nil
}

// Set writes through both tiers, overwriting any existing entry and resetting
// its expiry. A durable tier write failure is logged, never surfaced: the two
// tiers are allowed to diverge transiently, with the durable tier remaining
// the longer-lived source of truth once the fast entry expires.
func (m *Manager) Set(ctx context.Context, key string, value []byte, contentType string) {
	policy := m.policyTable().Resolve(contentType)
	m.writeThrough(ctx, policy.Prefix+key, contentType, policy, value)
}

func (m *Manager) writeThrough(ctx context.Context, fullKey, contentType string, policy Policy, value []byte) {
	m.fast.Put(fullKey, newEntry(value, time.Now(), policy.TTL))
	m.metrics.ObserveStore(metrics.TierFast, contentType, metrics.StoreStored, 0)

	start := time.Now()
	if err := m.durable.Put(ctx, fullKey, value, policy.TTL); err != nil {
		m.metrics.ObserveStore(metrics.TierDurable, contentType, metrics.StoreError, time.Since(start))
		m.logger.Warn("durable tier write failed, tiers diverge until fast entry expires",
			slog.String("key", fullKey), slog.Any("error", err))
		return
	}
	m.metrics.ObserveStore(metrics.TierDurable, contentType, metrics.StoreStored, time.Since(start))
}

// Invalidate removes the fully-qualified key from both tiers. An invalidate
// issued concurrently with an in-flight populate does not cancel that
// populate, so a late write can resurrect the key immediately afterwards.
func (m *Manager) Invalidate(ctx context.Context, key, contentType string) {
	fullKey := m.policyTable().FullKey(contentType, key)
	m.fast.Delete(fullKey)
	if err := m.durable.Delete(ctx, fullKey); err != nil {
		m.logger.Warn("durable tier delete failed, entry expires via ttl",
			slog.String("key", fullKey), slog.Any("error", err))
	}
}

// InvalidatePattern removes every fast-tier key containing the resolved full
// pattern as a substring and returns the number removed. The durable tier
// offers no pattern scan, so matching durable entries are left to expire via
// TTL. Pattern invalidation is fast-tier-only.
func (m *Manager) InvalidatePattern(pattern, contentType string) int {
	fullPattern := m.policyTable().FullKey(contentType, pattern)
	removed := m.fast.DeletePattern(fullPattern)
	if removed > 0 {
		m.logger.Debug("pattern invalidation",
			slog.String("pattern", fullPattern), slog.Int("removed", removed))
	}
	return removed
}

// AsideOptions tunes CacheAside. The hooks are observation points fired
// synchronously; they never affect control flow or the cached value.
type AsideOptions struct {
	// ForceRefresh skips both lookup tiers and always calls the provider,
	// still writing the result through.
	ForceRefresh bool
	// OnHit fires when a lookup tier returned a live value.
	OnHit func(key string, value []byte)
	// OnMiss fires whenever the provider path is taken.
	OnMiss func(key string)
}

// CacheAside is Get with a provider plus explicit hit/miss observation points
// and a force-refresh escape hatch.
func (m *Manager) CacheAside(ctx context.Context, key, contentType string, provider ProviderFunc, opts AsideOptions) ([]byte, bool, error) {
	policy := m.policyTable().Resolve(contentType)
	fullKey := policy.Prefix + key

	if !opts.ForceRefresh {
		start := time.Now()
		if entry, ok := m.fast.Get(fullKey, start); ok {
			m.metrics.ObserveLookup(metrics.TierFast, contentType, metrics.LookupHit, time.Since(start))
			if opts.OnHit != nil {
				opts.OnHit(fullKey, entry.Value)
			}
			return entry.Value, true, nil
		}
		m.metrics.ObserveLookup(metrics.TierFast, contentType, metrics.LookupMiss, time.Since(start))

		durableStart := time.Now()
		payload, ok, err := m.durable.Get(ctx, fullKey)
		switch {
		case err != nil:
			m.metrics.ObserveLookup(metrics.TierDurable, contentType, metrics.LookupError, time.Since(durableStart))
			m.logger.Warn("durable tier lookup failed, treating as miss",
				slog.String("key", fullKey), slog.Any("error", err))
		case ok:
			m.metrics.ObserveLookup(metrics.TierDurable, contentType, metrics.LookupHit, time.Since(durableStart))
			m.fast.Put(fullKey, newEntry(payload, time.Now(), policy.TTL))
			if opts.OnHit != nil {
				opts.OnHit(fullKey, payload)
			}
			return payload, true, nil
		default:
			m.metrics.ObserveLookup(metrics.TierDurable, contentType, metrics.LookupMiss, time.Since(durableStart))
		}
	}

	if opts.OnMiss != nil {
		opts.OnMiss(fullKey)
	}
	if provider == nil {
		return nil, false, nil
	}
	return m.populate(ctx, fullKey, contentType, policy, provider)
}

// PreloadEntry names one key to populate along with its own provider.
type PreloadEntry struct {
	Key         string
	ContentType string
	Provider    ProviderFunc
}

// Preload attempts every entry independently with bounded concurrency. One
// entry's provider failure never aborts the others; failures are logged and
// the call reports how many entries were attempted, never an aggregate error.
func (m *Manager) Preload(ctx context.Context, entries []PreloadEntry) int {
	var g errgroup.Group
	g.SetLimit(preloadConcurrency)
	for _, entry := range entries {
		g.Go(func() error {
			if _, _, err := m.Get(ctx, entry.Key, entry.ContentType, entry.Provider); err != nil {
				m.logger.Warn("preload entry failed",
					slog.String("key", entry.Key),
					slog.String("content_type", entry.ContentType),
					slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(entries)
}

// WarmTarget names one piece of popular content to warm.
type WarmTarget struct {
	Key         string
	ContentType string
}

// PopularFunc lists the content worth warming.
type PopularFunc func(ctx context.Context) ([]WarmTarget, error)

// FetchFunc loads the value for one warm target from the source.
type FetchFunc func(ctx context.Context, target WarmTarget) ([]byte, bool, error)

// WarmCache resolves the popular content list and preloads each target through
// the fetch function. Returns the number of targets attempted; a failure to
// list popular content warms nothing and is logged.
func (m *Manager) WarmCache(ctx context.Context, popular PopularFunc, fetch FetchFunc) int {
	targets, err := popular(ctx)
	if err != nil {
		m.logger.Warn("warm cache: popular content listing failed", slog.Any("error", err))
		return 0
	}
	entries := make([]PreloadEntry, 0, len(targets))
	for _, target := range targets {
		entries = append(entries, PreloadEntry{
			Key:         target.Key,
			ContentType: target.ContentType,
			Provider: func(ctx context.Context) ([]byte, bool, error) {
				return fetch(ctx, target)
			},
		})
	}
	return m.Preload(ctx, entries)
}

// PolicyStat is the diagnostics projection of one policy table row.
type PolicyStat struct {
	TTLSeconds int    `json:"ttlSeconds"`
	Prefix     string `json:"prefix"`
}

// Stats reports fast-tier occupancy and the effective policy table. It exists
// for diagnostics only and is not part of the correctness contract.
type Stats struct {
	FastSize     int                   `json:"fastSize"`
	FastCapacity int                   `json:"fastCapacity"`
	Keys         []string              `json:"keys"`
	Policies     map[string]PolicyStat `json:"policies"`
}

// Stats snapshots the fast tier and policy table.
func (m *Manager) Stats() Stats {
	snapshot := m.policyTable().Snapshot()
	policies := make(map[string]PolicyStat, len(snapshot))
	for tag, policy := range snapshot {
		policies[tag] = PolicyStat{
			TTLSeconds: int(policy.TTL / time.Second),
			Prefix:     policy.Prefix,
		}
	}
	return Stats{
		FastSize:     m.fast.Len(),
		FastCapacity: m.fast.Capacity(),
		Keys:         m.fast.Keys(),
		Policies:     policies,
	}
}

// Healthy probes the durable tier with a read so the diagnostics surface can
// report backend reachability.
func (m *Manager) Healthy(ctx context.Context) error {
	_, _, err := m.durable.Get(ctx, "healthz:probe")
	return err
}

// Close releases the durable tier.
func (m *Manager) Close(ctx context.Context) error {
	return m.durable.Close(ctx)
}
