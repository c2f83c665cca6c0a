// Package cache provides the shared cache store: TTL'd entries, tag-based
// and prefix-based bulk invalidation, hit/miss statistics, and a
// single-flight get-or-populate operation.
//
// The store is built entirely on the kv.Store primitives; it performs no
// I/O of its own. Construct one per process and inject it into handlers:
//
//	store := cache.New(kv.NewRedis(redisClient),
//		cache.WithNamespace("shop"),
//		cache.WithLogger(logger),
//	)
//
// # Reading and writing
//
//	err := store.Set(ctx, "products:42", product,
//		cache.WithTTL(10*time.Minute),
//		cache.WithTags("products"),
//	)
//
//	var p Product
//	found, err := store.Get(ctx, "products:42", &p)
//
// Reads fail open: a backend failure is logged and reported as a miss, so
// a Redis outage degrades to recomputation instead of taking requests
// down. Writes fail loud, because callers may rely on the data being
// retrievable by a different path.
//
// # Bulk invalidation
//
//	n, err := store.DeleteByTag(ctx, "products")
//	n, err := store.DeleteByPattern(ctx, "products:*")
//
// The tag index is a best-effort secondary index: one backend entry per
// membership, pruned lazily when a lookup lands on a key that no longer
// exists. Tags must not contain the ':' separator.
//
// # Get-or-populate
//
//	var p Product
//	err := store.GetOrSet(ctx, "products:42", &p, func(ctx context.Context) (any, error) {
//		return repo.LoadProduct(ctx, 42)
//	}, cache.WithTTL(10*time.Minute), cache.WithTags("products"))
//
// Concurrent GetOrSet calls for the same missing key within one process
// invoke the factory once and share the result (singleflight). When the
// store is constructed with WithLocker, the factory call is additionally
// guarded by a distributed lock so callers spread across processes also
// deduplicate; without a locker the guarantee is in-process only.
package cache
