package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Errorf("Get = %q, %v", got, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("key should be gone after Delete, got %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := newMemoryCache(5 * time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("x"), 10*time.Millisecond)
	_ = c.Set(ctx, "forever", []byte("y"), 0)

	time.Sleep(50 * time.Millisecond)

	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired key should miss, got %v", err)
	}
	if _, err := c.Get(ctx, "forever"); err != nil {
		t.Errorf("ttl 0 should never expire: %v", err)
	}
	if n := c.Len(); n != 1 {
		t.Errorf("cleanup should have dropped the expired item, %d left", n)
	}
}

func TestGetEntry_Corrupt(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	key := CacheKey("dicom-to-png", "broken")
	_ = c.Set(ctx, key, []byte("{not json"), time.Minute)

	if _, err := GetEntry(ctx, c, key); !errors.Is(err, ErrCorruptEntry) {
		t.Errorf("expected ErrCorruptEntry, got %v", err)
	}
}

func TestEntryRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	key := CacheKey("dicom-to-png", "abc")
	if key != "dicompixel:dicom-to-png:abc" {
		t.Errorf("CacheKey = %q", key)
	}

	in := &Entry{Name: "output_files.zip", Archived: true, Files: 3, Data: []byte{0, 1, 2, 255}}
	if err := SetEntry(ctx, c, key, in, time.Minute); err != nil {
		t.Fatal(err)
	}
	out, err := GetEntry(ctx, c, key)
	if err != nil {
		t.Fatal(err)
	}
	if out.Name != in.Name || !out.Archived || out.Files != 3 || string(out.Data) != string(in.Data) {
		t.Errorf("entry = %+v", out)
	}

	if _, err := GetEntry(ctx, c, "nope"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss, got %v", err)
	}
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	c := NewMemoryCache()
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}
