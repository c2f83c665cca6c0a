package cache

import (
	"context"
	"testing"
	"time"

	"github.com/commercekit/cachekit/pkg/codec"
	"github.com/commercekit/cachekit/pkg/kv"
)

type testValue struct {
	X int `json:"x" msgpack:"x"`
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return New(kv.NewMemory(), opts...)
}

func TestNew_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("New should panic with nil kv store")
		}
	}()
	New(nil)
}

func TestStore_SetAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "products:42", testValue{X: 1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got testValue
	found, err := store.Get(ctx, "products:42", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Get should find the value")
	}
	if got.X != 1 {
		t.Errorf("Got %+v, want {X:1}", got)
	}
}

func TestStore_Get_Miss(t *testing.T) {
	store := newTestStore(t)

	var got testValue
	found, err := store.Get(context.Background(), "missing", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Get of missing key should report not found")
	}
}

func TestStore_Get_Expired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", testValue{X: 1}, WithTTL(20*time.Millisecond)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	found, err := store.Get(ctx, "k", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Expired entry must be treated as a miss")
	}
}

func TestStore_Get_MsgpackCodec(t *testing.T) {
	store := newTestStore(t, WithCodec(codec.Msgpack{}))
	ctx := context.Background()

	if err := store.Set(ctx, "k", testValue{X: 7}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got testValue
	found, err := store.Get(ctx, "k", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || got.X != 7 {
		t.Errorf("Got found=%v value=%+v, want found=true {X:7}", found, got)
	}
}

func TestStore_Get_FailsOpenOnBackendError(t *testing.T) {
	backend := &failingStore{Store: kv.NewMemory(), failGet: true}
	store := New(backend)

	found, err := store.Get(context.Background(), "k", nil)
	if err != nil {
		t.Fatalf("Get must not propagate backend errors: %v", err)
	}
	if found {
		t.Error("Backend failure must be reported as a miss")
	}
}

func TestStore_Set_PropagatesBackendError(t *testing.T) {
	backend := &failingStore{Store: kv.NewMemory(), failSet: true}
	store := New(backend)

	err := store.Set(context.Background(), "k", testValue{X: 1})
	if err == nil {
		t.Fatal("Set must propagate backend errors")
	}
}

func TestStore_Has(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	live, err := store.Has(ctx, "k")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if live {
		t.Error("Has should be false for missing key")
	}

	if err := store.Set(ctx, "k", testValue{X: 1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	live, err = store.Has(ctx, "k")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !live {
		t.Error("Has should be true for live key")
	}

	// Existence checks are not reads.
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Has must not affect statistics: hits=%d misses=%d", stats.Hits, stats.Misses)
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", testValue{X: 1}, WithTags("g")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	removed, err := store.Delete(ctx, "k")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Error("Delete should report removal")
	}

	keys, err := store.KeysByTag(ctx, "g")
	if err != nil {
		t.Fatalf("KeysByTag failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Tag memberships should be pruned on delete, got %v", keys)
	}

	removed, err = store.Delete(ctx, "k")
	if err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	if removed {
		t.Error("Delete of missing key should report false")
	}
}

func TestStore_Clear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "a", testValue{X: 1}, WithTags("g")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "b", testValue{X: 2}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	// Generate some statistics.
	if _, err := store.Get(ctx, "a", nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := store.Get(ctx, "missing", nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	found, err := store.Get(ctx, "a", nil)
	if err != nil {
		t.Fatalf("Get after clear failed: %v", err)
	}
	if found {
		t.Error("Entries should be gone after Clear")
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	// The Get above already counted one fresh miss.
	if stats.Hits != 0 || stats.Misses != 1 {
		t.Errorf("Clear should reset statistics: hits=%d misses=%d", stats.Hits, stats.Misses)
	}
	if stats.Keys != 0 {
		t.Errorf("Clear should remove all keys, got %d", stats.Keys)
	}
}

func TestStore_Stats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.HitRate != 0 {
		t.Errorf("HitRate with no calls = %v, want 0", stats.HitRate)
	}

	if err := store.Set(ctx, "a", testValue{X: 1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.Get(ctx, "a", nil); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
	if _, err := store.Get(ctx, "missing", nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Hits != 3 || stats.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 3/1", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.75 {
		t.Errorf("HitRate = %v, want 0.75", stats.HitRate)
	}
	if stats.Keys != 1 {
		t.Errorf("Keys = %d, want 1", stats.Keys)
	}
	if stats.Memory == "" {
		t.Error("Memory estimate should not be empty")
	}
}

func TestStore_NamespaceIsolation(t *testing.T) {
	backend := kv.NewMemory()
	shop := New(backend, WithNamespace("shop"))
	admin := New(backend, WithNamespace("admin"))
	ctx := context.Background()

	if err := shop.Set(ctx, "k", testValue{X: 1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	found, err := admin.Get(ctx, "k", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Namespaces must not share entries")
	}

	if err := admin.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	found, err = shop.Get(ctx, "k", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Error("Clear of another namespace must not remove entries")
	}
}
