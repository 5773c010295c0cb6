package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tier identifies which cache layer an observation belongs to.
type Tier string

const (
	// TierFast records operations against the bounded in-process tier.
	TierFast Tier = "fast"
	// TierDurable records operations against the external durable tier.
	TierDurable Tier = "durable"
)

// LookupOutcome captures the result of a tier lookup.
type LookupOutcome string

const (
	// LookupHit indicates the lookup returned a live entry.
	LookupHit LookupOutcome = "hit"
	// LookupMiss indicates no live entry was present.
	LookupMiss LookupOutcome = "miss"
	// LookupError indicates the lookup failed due to an error.
	LookupError LookupOutcome = "error"
)

// StoreOutcome captures the result of a tier store attempt.
type StoreOutcome string

const (
	// StoreStored indicates the entry was persisted in the tier.
	StoreStored StoreOutcome = "stored"
	// StoreError indicates the store operation failed.
	StoreError StoreOutcome = "error"
)

// EvictionReason distinguishes the two phases of fast-tier eviction.
type EvictionReason string

const (
	// EvictionExpired counts entries removed because their expiry elapsed.
	EvictionExpired EvictionReason = "expired"
	// EvictionCapacity counts entries removed under capacity pressure.
	EvictionCapacity EvictionReason = "capacity"
)

// ProviderOutcome captures the result of a source-provider invocation.
type ProviderOutcome string

const (
	// ProviderFetched indicates the provider returned a value.
	ProviderFetched ProviderOutcome = "fetched"
	// ProviderAbsent indicates the provider reported no value.
	ProviderAbsent ProviderOutcome = "absent"
	// ProviderError indicates the provider failed.
	ProviderError ProviderOutcome = "error"
)

// Recorder publishes Prometheus metrics for cache activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	lookups       *prometheus.CounterVec
	lookupLatency *prometheus.HistogramVec
	stores        *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	evictions     *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	fastSize      prometheus.Gauge
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentcache",
		Subsystem: "tier",
		Name:      "lookups_total",
		Help:      "Cache tier lookups grouped by layer and outcome.",
	}, []string{"tier", "content_type", "result"})

	lookupLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "contentcache",
		Subsystem: "tier",
		Name:      "lookup_duration_seconds",
		Help:      "Latency distribution for cache tier lookups.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"tier", "result"})

	stores := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentcache",
		Subsystem: "tier",
		Name:      "stores_total",
		Help:      "Cache tier store attempts grouped by layer and outcome.",
	}, []string{"tier", "content_type", "result"})

	storeLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "contentcache",
		Subsystem: "tier",
		Name:      "store_duration_seconds",
		Help:      "Latency distribution for cache tier stores.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"tier", "result"})

	evictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentcache",
		Subsystem: "fast",
		Name:      "evictions_total",
		Help:      "Fast tier entries evicted, split by eviction phase.",
	}, []string{"reason"})

	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentcache",
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Source provider invocations performed on cache misses.",
	}, []string{"content_type", "result"})

	fastSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "contentcache",
		Subsystem: "fast",
		Name:      "entries",
		Help:      "Current number of entries held by the fast tier.",
	})

	reg.MustRegister(lookups, lookupLatency, stores, storeLatency, evictions, providerCalls, fastSize)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:      reg,
		handler:       handler,
		lookups:       lookups,
		lookupLatency: lookupLatency,
		stores:        stores,
		storeLatency:  storeLatency,
		evictions:     evictions,
		providerCalls: providerCalls,
		fastSize:      fastSize,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer exposes the underlying registry for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return nil
	}
	return r.gatherer
}

// ObserveLookup records a tier lookup and its latency.
func (r *Recorder) ObserveLookup(tier Tier, contentType string, outcome LookupOutcome, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(string(tier), contentType, string(outcome)).Inc()
	r.lookupLatency.WithLabelValues(string(tier), string(outcome)).Observe(elapsed.Seconds())
}

// ObserveStore records a tier store attempt and its latency.
func (r *Recorder) ObserveStore(tier Tier, contentType string, outcome StoreOutcome, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.stores.WithLabelValues(string(tier), contentType, string(outcome)).Inc()
	r.storeLatency.WithLabelValues(string(tier), string(outcome)).Observe(elapsed.Seconds())
}

// AddEvictions counts fast-tier entries removed during an eviction phase.
func (r *Recorder) AddEvictions(reason EvictionReason, count int) {
	if r == nil || count <= 0 {
		return
	}
	r.evictions.WithLabelValues(string(reason)).Add(float64(count))
}

// ObserveProviderCall counts a provider invocation by outcome.
func (r *Recorder) ObserveProviderCall(contentType string, outcome ProviderOutcome) {
	if r == nil {
		return
	}
	r.providerCalls.WithLabelValues(contentType, string(outcome)).Inc()
}

// SetFastTierSize publishes the fast tier's current entry count.
func (r *Recorder) SetFastTierSize(size int) {
	if r == nil {
		return
	}
	r.fastSize.Set(float64(size))
}
