package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hookline/hookline/cache"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	kv := cache.NewMemory()

	if _, err := kv.Get(ctx, "k"); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}

	if err := kv.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	got, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}

	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := kv.Get(ctx, "k"); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("expected ErrMiss after delete, got %v", err)
	}

	// Deleting an absent key is a no-op.
	if err := kv.Delete(ctx, "absent"); err != nil {
		t.Errorf("Delete(absent) = %v, want nil", err)
	}
}

func TestMemoryCopiesOut(t *testing.T) {
	ctx := context.Background()
	kv := cache.NewMemory()

	if err := kv.Set(ctx, "k", []byte("abc")); err != nil {
		t.Fatal(err)
	}

	got, _ := kv.Get(ctx, "k")
	got[0] = 'x'

	again, _ := kv.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("cached value mutated through returned slice: %q", again)
	}
}
