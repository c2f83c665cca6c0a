// cachemon is the cache operations sidecar: health checking, Prometheus
// metrics, cache statistics and admin invalidation endpoints for the
// shared cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/commercekit/cachekit/pkg/cache"
	"github.com/commercekit/cachekit/pkg/kv"
	"github.com/commercekit/cachekit/pkg/logging"
)

func main() {
	// Configuration from environment
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	port := getEnv("PORT", "8080")
	namespace := getEnv("CACHE_NAMESPACE", cache.DefaultNamespace)
	logLevel := getEnv("LOG_LEVEL", "info")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Output: os.Stderr,
	})

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("addr", redisURL).Msg("Connected to Redis")

	backend := kv.NewRedis(redisClient)
	store := cache.New(backend,
		cache.WithNamespace(namespace),
		cache.WithLogger(logging.NewLogger("cache")),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(backend))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /stats", statsHandler(store))
	mux.HandleFunc("POST /invalidate/tag/{tag}", invalidateTagHandler(store, logger))
	mux.HandleFunc("POST /invalidate/prefix/{prefix}", invalidatePrefixHandler(store, logger))

	addr := ":" + port
	logger.Info().Str("addr", addr).Str("namespace", namespace).Msg("Starting cachemon")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(backend *kv.Redis) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := backend.Ping(ctx); err != nil {
			http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

func statsHandler(store *cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Stats(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("stats failed: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"hit_rate": stats.HitRate,
			"keys":     stats.Keys,
			"memory":   stats.Memory,
		})
	}
}

func invalidateTagHandler(store *cache.Store, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := r.PathValue("tag")
		if tag == "" {
			http.Error(w, "tag is required", http.StatusBadRequest)
			return
		}

		count, err := store.DeleteByTag(r.Context(), tag)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalidation failed: %v", err), http.StatusInternalServerError)
			return
		}

		logger.Info().Str("tag", tag).Int("removed", count).Msg("Admin tag invalidation")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"removed": count})
	}
}

func invalidatePrefixHandler(store *cache.Store, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := r.PathValue("prefix")
		if prefix == "" {
			http.Error(w, "prefix is required", http.StatusBadRequest)
			return
		}

		count, err := store.DeleteByPattern(r.Context(), prefix+"*")
		if err != nil {
			http.Error(w, fmt.Sprintf("invalidation failed: %v", err), http.StatusInternalServerError)
			return
		}

		logger.Info().Str("prefix", prefix).Int("removed", count).Msg("Admin prefix invalidation")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"removed": count})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
