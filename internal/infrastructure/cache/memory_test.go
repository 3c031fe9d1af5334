package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreSetGet(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	_ = s.Set(ctx, "short", "v", time.Millisecond)
	_ = s.Set(ctx, "forever", "v", 0)
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "short"); ok {
		t.Fatal("expected expired key to be missing")
	}
	if _, ok, _ := s.Get(ctx, "forever"); !ok {
		t.Fatal("expected non-expiring key to be present")
	}

	s.purge(time.Now())
	if s.Len() != 1 {
		t.Fatalf("Len after purge = %d, want 1", s.Len())
	}
}

func TestMemoryStoreCloseIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
