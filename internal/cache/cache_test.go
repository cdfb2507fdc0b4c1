package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*EntryCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	entryCache, err := New("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create entry cache: %v", err)
	}
	return entryCache, s
}

func TestNewEntryCache(t *testing.T) {
	entryCache, s := setupTestCache(t)
	defer entryCache.Close()
	defer s.Close()

	if err := entryCache.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestEntryCacheRoundTrip(t *testing.T) {
	entryCache, s := setupTestCache(t)
	defer entryCache.Close()
	defer s.Close()

	ctx := context.Background()

	if _, ok := entryCache.Get(ctx, "R1", "S1"); ok {
		t.Fatal("expected miss before set")
	}

	payload := []byte(`{"displayCount":0,"ports":[]}`)
	if err := entryCache.Set(ctx, "R1", "S1", payload); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	cached, ok := entryCache.Get(ctx, "R1", "S1")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if string(cached) != string(payload) {
		t.Errorf("cached = %s, want %s", cached, payload)
	}

	if _, ok := entryCache.Get(ctx, "R1", "other"); ok {
		t.Error("key collision across subregions")
	}
}

func TestEntryCacheInvalidate(t *testing.T) {
	entryCache, s := setupTestCache(t)
	defer entryCache.Close()
	defer s.Close()

	ctx := context.Background()
	if err := entryCache.Set(ctx, "R1", "S1", []byte(`{}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := entryCache.Invalidate(ctx, "R1", "S1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok := entryCache.Get(ctx, "R1", "S1"); ok {
		t.Error("expected miss after invalidate")
	}
}

func TestEntryCacheTTLExpiry(t *testing.T) {
	entryCache, s := setupTestCache(t)
	defer entryCache.Close()
	defer s.Close()

	ctx := context.Background()
	if err := entryCache.Set(ctx, "R1", "S1", []byte(`{}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, ok := entryCache.Get(ctx, "R1", "S1"); ok {
		t.Error("expected miss after TTL expiry")
	}
}
