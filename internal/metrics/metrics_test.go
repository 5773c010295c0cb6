package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderObservations(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())

	rec.ObserveLookup(TierFast, "movies", LookupHit, time.Millisecond)
	rec.ObserveLookup(TierFast, "movies", LookupMiss, time.Millisecond)
	rec.ObserveLookup(TierDurable, "movies", LookupError, time.Millisecond)
	rec.ObserveStore(TierDurable, "movies", StoreStored, time.Millisecond)
	rec.AddEvictions(EvictionCapacity, 2)
	rec.AddEvictions(EvictionExpired, 0)
	rec.ObserveProviderCall("movies", ProviderFetched)
	rec.SetFastTierSize(7)

	count, err := testutil.GatherAndCount(rec.Gatherer(),
		"contentcache_tier_lookups_total",
		"contentcache_tier_stores_total",
		"contentcache_fast_evictions_total",
		"contentcache_provider_calls_total",
		"contentcache_fast_entries",
	)
	require.NoError(t, err)
	// Three lookup series, one store, one eviction reason (zero-count adds are
	// dropped), one provider series, one gauge.
	require.Equal(t, 7, count)
}

func TestRecorderHandlerServesMetrics(t *testing.T) {
	rec := NewRecorder(nil)
	rec.SetFastTierSize(3)

	ts := httptest.NewServer(rec.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "contentcache_fast_entries"))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.ObserveLookup(TierFast, "movies", LookupHit, 0)
	rec.ObserveStore(TierFast, "movies", StoreStored, 0)
	rec.AddEvictions(EvictionExpired, 1)
	rec.ObserveProviderCall("movies", ProviderFetched)
	rec.SetFastTierSize(1)

	ts := httptest.NewServer(rec.Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
