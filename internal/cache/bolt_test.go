package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newBoltTier(t *testing.T) DurableTier {
	t.Helper()
	tier, err := NewBoltDurable(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("new bolt: %v", err)
	}
	t.Cleanup(func() {
		if err := tier.Close(context.Background()); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return tier
}

func TestBoltDurablePutGetDelete(t *testing.T) {
	tier := newBoltTier(t)
	ctx := context.Background()

	if err := tier.Put(ctx, "movie:42", []byte(`{"title":"X"}`), time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := tier.Get(ctx, "movie:42")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != `{"title":"X"}` {
		t.Fatalf("unexpected payload: %s", got)
	}

	if err := tier.Delete(ctx, "movie:42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := tier.Get(ctx, "movie:42"); ok {
		t.Fatalf("expected delete to remove key")
	}
}

func TestBoltDurableExpiryOnRead(t *testing.T) {
	tier := newBoltTier(t)
	ctx := context.Background()

	if err := tier.Put(ctx, "key", []byte(`1`), 10*time.Millisecond); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, err := tier.Get(ctx, "key"); err != nil {
		t.Fatalf("get: %v", err)
	} else if ok {
		t.Fatalf("expected expiry enforced on read")
	}
}

func TestBoltDurableSweepPurgesExpired(t *testing.T) {
	tier := newBoltTier(t)
	ctx := context.Background()

	if err := tier.Put(ctx, "stale", []byte(`1`), time.Millisecond); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tier.Put(ctx, "fresh", []byte(`1`), time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}

	bolt := tier.(*boltDurable)
	bolt.sweepOnce(time.Now().Add(time.Second))

	if _, ok, _ := tier.Get(ctx, "stale"); ok {
		t.Fatalf("expected sweep to purge the expired record")
	}
	if _, ok, _ := tier.Get(ctx, "fresh"); !ok {
		t.Fatalf("expected sweep to keep the live record")
	}
}
