package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryDurablePutGet(t *testing.T) {
	tier := NewMemoryDurable()
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

func TestMemoryDurableExpiry(t *testing.T) {
	tier := NewMemoryDurable()
	ctx := context.Background()

	if err := tier.Put(ctx, "key", []byte(`1`), 10*time.Millisecond); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := tier.Get(ctx, "key"); !ok {
		t.Fatalf("expected entry live immediately after put")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := tier.Get(ctx, "key"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMemoryDurableNonPositiveTTLIsNoop(t *testing.T) {
	tier := NewMemoryDurable()
	ctx := context.Background()

	if err := tier.Put(ctx, "key", []byte(`1`), 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := tier.Get(ctx, "key"); ok {
		t.Fatalf("expected zero-ttl put to store nothing")
	}
}
