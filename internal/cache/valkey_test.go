package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/sparrowflix/contentcache/internal/config"
)

func TestValkeyDurablePutGetDelete(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer server.Close()

	tier, err := NewValkeyDurable(config.ValkeyConfig{Address: server.Addr()})
	if err != nil {
		t.Fatalf("new valkey: %v", err)
	}
	ctx := context.Background()
	defer func() {
		if err := tier.Close(ctx); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	if err := tier.Put(ctx, "movie:42", []byte(`{"title":"X"}`), 500*time.Millisecond); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := tier.Get(ctx, "movie:42")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != `{"title":"X"}` {
		t.Fatalf("unexpected payload: %s", got)
	}

	server.FastForward(time.Second)
	if _, ok, err := tier.Get(ctx, "movie:42"); err != nil {
		t.Fatalf("get after ttl: %v", err)
	} else if ok {
		t.Fatalf("expected tier to expire the entry on its own schedule")
	}

	if err := tier.Put(ctx, "movie:7", []byte(`{}`), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tier.Delete(ctx, "movie:7"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := tier.Get(ctx, "movie:7"); ok {
		t.Fatalf("expected delete to remove key")
	}
}

func TestValkeyDurableRequiresAddress(t *testing.T) {
	if _, err := NewValkeyDurable(config.ValkeyConfig{}); err == nil {
		t.Fatalf("expected error for missing address")
	}
}

func TestManagerDegradesWhenValkeyStops(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	tier, err := NewValkeyDurable(config.ValkeyConfig{Address: server.Addr()})
	if err != nil {
		t.Fatalf("new valkey: %v", err)
	}
	m := newTestManager(tier)
	ctx := context.Background()
	defer func() { _ = m.Close(ctx) }()

	m.Set(ctx, "42", []byte(`{"title":"X"}`), "movies")

	// Take the durable tier down: the manager must fall through to the
	// provider instead of surfacing an error.
	server.Close()
	m.fast.Flush()

	got, ok, err := m.Get(ctx, "42", "movies", func(context.Context) ([]byte, bool, error) {
		return []byte(`{"title":"fallback"}`), true, nil
	})
	if err != nil {
		t.Fatalf("durable outage must not surface: %v", err)
	}
	if !ok || string(got) != `{"title":"fallback"}` {
		t.Fatalf("expected provider fallback, got ok=%v %s", ok, got)
	}
}
