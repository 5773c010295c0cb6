package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestFastTierLazyExpiry(t *testing.T) {
	tier := NewFastTier(10, nil)
	now := time.Now()
	tier.Put("movie:42", newEntry([]byte(`"x"`), now, 10*time.Millisecond))

	if _, ok := tier.Get("movie:42", now); !ok {
		t.Fatalf("expected entry to be live immediately after insertion")
	}
	if _, ok := tier.Get("movie:42", now.Add(20*time.Millisecond)); ok {
		t.Fatalf("expected entry to be absent once the clock advances past its ttl")
	}
	if tier.Len() != 0 {
		t.Fatalf("expected expired entry to be lazily deleted, size %d", tier.Len())
	}
}

func TestFastTierGetReturnsPrivateCopy(t *testing.T) {
	tier := NewFastTier(4, nil)
	now := time.Now()
	tier.Put("movie:42", newEntry([]byte(`{"title":"X"}`), now, time.Hour))

	first, ok := tier.Get("movie:42", now)
	if !ok {
		t.Fatalf("expected hit")
	}
	first.Value[0] = 'Z'

	second, ok := tier.Get("movie:42", now)
	if !ok {
		t.Fatalf("expected hit")
	}
	if string(second.Value) != `{"title":"X"}` {
		t.Fatalf("stored value mutated through a returned slice: %s", second.Value)
	}
}

func TestFastTierCapacityInvariant(t *testing.T) {
	const maxEntries = 8
	tier := NewFastTier(maxEntries, nil)
	now := time.Now()
	for i := 0; i < 100; i++ {
		tier.Put(fmt.Sprintf("key-%03d", i), newEntry([]byte(`1`), now.Add(time.Duration(i)*time.Millisecond), time.Hour))
		if tier.Len() > maxEntries {
			t.Fatalf("capacity invariant violated after insert %d: size %d", i, tier.Len())
		}
	}
}

func TestFastTierEvictsExpiredFirst(t *testing.T) {
	tier := NewFastTier(4, nil)
	now := time.Now()
	tier.Put("stale-1", newEntry([]byte(`1`), now.Add(-time.Minute), time.Millisecond))
	tier.Put("stale-2", newEntry([]byte(`1`), now.Add(-time.Minute), time.Millisecond))
	tier.Put("fresh-1", newEntry([]byte(`1`), now, time.Hour))
	tier.Put("fresh-2", newEntry([]byte(`1`), now, time.Hour))

	tier.Put("fresh-3", newEntry([]byte(`1`), now, time.Hour))

	if _, ok := tier.Get("fresh-1", now); !ok {
		t.Fatalf("expected fresh entry to survive eviction")
	}
	if _, ok := tier.Get("fresh-2", now); !ok {
		t.Fatalf("expected fresh entry to survive eviction")
	}
	if _, ok := tier.Get("fresh-3", now); !ok {
		t.Fatalf("expected newly inserted entry to be present")
	}
	if tier.Len() != 3 {
		t.Fatalf("expected only fresh entries to remain, size %d", tier.Len())
	}
}

func TestFastTierEvictsOldestQuarterUnderPressure(t *testing.T) {
	const maxEntries = 8
	tier := NewFastTier(maxEntries, nil)
	base := time.Now()
	for i := 0; i < maxEntries; i++ {
		created := base.Add(time.Duration(i) * time.Second)
		tier.Put(fmt.Sprintf("key-%d", i), Entry{
			Value:     []byte(`1`),
			CreatedAt: created,
			ExpiresAt: created.Add(time.Hour),
		})
	}

	tier.Put("key-overflow", newEntry([]byte(`1`), base.Add(time.Hour), time.Hour))

	// 8/4 = 2 oldest entries by creation time should be gone.
	now := base.Add(time.Minute)
	for _, victim := range []string{"key-0", "key-1"} {
		if _, ok := tier.Get(victim, now); ok {
			t.Fatalf("expected %s to be evicted as oldest", victim)
		}
	}
	for i := 2; i < maxEntries; i++ {
		if _, ok := tier.Get(fmt.Sprintf("key-%d", i), now); !ok {
			t.Fatalf("expected key-%d to survive", i)
		}
	}
	if _, ok := tier.Get("key-overflow", now); !ok {
		t.Fatalf("expected overflow key to be present")
	}
}

func TestFastTierDeletePattern(t *testing.T) {
	tier := NewFastTier(10, nil)
	now := time.Now()
	tier.Put("episodes:tt100?season=1", newEntry([]byte(`1`), now, time.Hour))
	tier.Put("episodes:tt100?season=2", newEntry([]byte(`1`), now, time.Hour))
	tier.Put("episodes:tt200?season=1", newEntry([]byte(`1`), now, time.Hour))

	if removed := tier.DeletePattern("episodes:tt100"); removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}
	if _, ok := tier.Get("episodes:tt200?season=1", now); !ok {
		t.Fatalf("expected unrelated key to survive pattern delete")
	}
	if removed := tier.DeletePattern(""); removed != 0 {
		t.Fatalf("expected empty pattern to remove nothing, got %d", removed)
	}
}

func TestFastTierOverwriteResetsExpiry(t *testing.T) {
	tier := NewFastTier(10, nil)
	now := time.Now()
	tier.Put("movie:42", newEntry([]byte(`"old"`), now.Add(-time.Hour), time.Minute))
	tier.Put("movie:42", newEntry([]byte(`"new"`), now, time.Hour))

	entry, ok := tier.Get("movie:42", now.Add(time.Minute))
	if !ok {
		t.Fatalf("expected overwritten entry to be live")
	}
	if string(entry.Value) != `"new"` {
		t.Fatalf("expected overwrite to win, got %s", entry.Value)
	}
	if tier.Len() != 1 {
		t.Fatalf("expected overwrite not to grow the tier, size %d", tier.Len())
	}
}
