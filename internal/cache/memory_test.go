package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore(10 * time.Millisecond)
	defer s.Close()

	ctx := context.Background()
	key := TextKey("1342")
	val := []byte("It is a truth universally acknowledged")

	if err := s.Set(ctx, key, val, 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit immediately after Set")
	}
	if string(got) != string(val) {
		t.Fatalf("expected %q, got %q", val, got)
	}

	// Wait for TTL to expire
	time.Sleep(30 * time.Millisecond)

	_, hit, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss after TTL expiry")
	}
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	s := NewMemoryStore(5 * time.Millisecond)
	defer s.Close()

	ctx := context.Background()
	key := AnalysisKey("1342")

	if err := s.Set(ctx, key, []byte(`{"themes":[]}`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Outlive several cleanup sweeps.
	time.Sleep(25 * time.Millisecond)

	_, hit, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("entry with zero TTL must not expire")
	}
}

func TestMemoryStoreDeleteAndExists(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()

	ctx := context.Background()
	key := TextKey("84")

	if err := s.Set(ctx, key, []byte("text"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ok, _ := s.Exists(ctx, key); !ok {
		t.Fatalf("expected key to exist")
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ok, _ := s.Exists(ctx, key); ok {
		t.Fatalf("expected key to be gone")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d items", s.Len())
	}
}
