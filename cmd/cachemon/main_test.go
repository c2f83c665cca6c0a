package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/commercekit/cachekit/internal/testutil"
	"github.com/commercekit/cachekit/pkg/cache"
	"github.com/commercekit/cachekit/pkg/kv"
)

func newTestMux(t *testing.T) (*http.ServeMux, *cache.Store) {
	t.Helper()

	store := cache.New(kv.NewMemory())
	logger := zerolog.Nop()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats", statsHandler(store))
	mux.HandleFunc("POST /invalidate/tag/{tag}", invalidateTagHandler(store, logger))
	mux.HandleFunc("POST /invalidate/prefix/{prefix}", invalidatePrefixHandler(store, logger))

	return mux, store
}

func TestHealthEndpoint(t *testing.T) {
	client := testutil.LocalRedis(t)
	backend := kv.NewRedis(client)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	healthHandler(backend)(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health status = %d, want %d", w.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(w.Body)
	if string(body) != "OK" {
		t.Errorf("Health body = %q, want OK", body)
	}
}

func TestStatsEndpoint(t *testing.T) {
	mux, store := newTestMux(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := store.Get(ctx, "k", nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Stats status = %d, want %d", w.Code, http.StatusOK)
	}

	var stats map[string]any
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats["hits"].(float64) != 1 {
		t.Errorf("hits = %v, want 1", stats["hits"])
	}
	if stats["keys"].(float64) != 1 {
		t.Errorf("keys = %v, want 1", stats["keys"])
	}
}

func TestInvalidateTagEndpoint(t *testing.T) {
	mux, store := newTestMux(t)
	ctx := context.Background()

	if err := store.Set(ctx, "products:1", "v", cache.WithTags("products")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	req := httptest.NewRequest("POST", "/invalidate/tag/products", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"removed":1`) {
		t.Errorf("Body = %q, want removed count 1", w.Body.String())
	}

	found, err := store.Get(ctx, "products:1", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Entry should be invalidated via the admin endpoint")
	}
}

func TestInvalidatePrefixEndpoint(t *testing.T) {
	mux, store := newTestMux(t)
	ctx := context.Background()

	if err := store.Set(ctx, "products:1", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "orders:1", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	req := httptest.NewRequest("POST", "/invalidate/prefix/products:", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if found, _ := store.Get(ctx, "products:1", nil); found {
		t.Error("Matching entry should be invalidated")
	}
	if found, _ := store.Get(ctx, "orders:1", nil); !found {
		t.Error("Non-matching entry should survive")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("CACHEMON_TEST_VAR", "value")

	if got := getEnv("CACHEMON_TEST_VAR", "fallback"); got != "value" {
		t.Errorf("getEnv = %q, want %q", got, "value")
	}
	if got := getEnv("CACHEMON_MISSING_VAR", "fallback"); got != "fallback" {
		t.Errorf("getEnv = %q, want %q", got, "fallback")
	}
}
