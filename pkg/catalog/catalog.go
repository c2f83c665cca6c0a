// Package catalog provides the storefront's caching conventions as thin
// wrappers over the cache store, lock manager and rate limiter. It adds no
// mechanism of its own; it exists so that every call site uses the same
// key names, tags and TTLs, and a bulk invalidation therefore reaches
// every entry cached for that domain.
//
// Key and tag conventions:
//
//	products:<id>     tag "products"    TTL 10m
//	products:all      tag "products"    TTL 2m
//	categories:<id>   tag "categories"  TTL 5m
//	categories:all    tag "categories"  TTL 2m
//	customers:<id>    tag "customers"   TTL 5m
//	search:<hash>     tag "search"      TTL 1m
//
// Order webhooks coordinate through locks on "orders:<id>"; API clients
// are limited per client ID under "api:<client>".
package catalog

import (
	"context"
	"time"

	"github.com/commercekit/cachekit/pkg/cache"
	"github.com/commercekit/cachekit/pkg/lock"
	"github.com/commercekit/cachekit/pkg/ratelimit"
)

// Key prefixes and list keys.
const (
	ProductKeyPrefix  = "products:"
	CategoryKeyPrefix = "categories:"
	CustomerKeyPrefix = "customers:"
	SearchKeyPrefix   = "search:"
	OrderLockPrefix   = "orders:"
	APILimitPrefix    = "api:"

	ProductsListKey   = "products:all"
	CategoriesListKey = "categories:all"
)

// Tags for bulk invalidation.
const (
	TagProducts   = "products"
	TagCategories = "categories"
	TagCustomers  = "customers"
	TagSearch     = "search"
)

// TTL conventions.
const (
	ProductTTL  = 10 * time.Minute
	CategoryTTL = 5 * time.Minute
	CustomerTTL = 5 * time.Minute
	ListTTL     = 2 * time.Minute
	SearchTTL   = 1 * time.Minute

	// OrderLockTTL bounds how long a crashed webhook handler can block
	// processing of the same order.
	OrderLockTTL = 30 * time.Second
)

// Default per-client API rate limit.
const (
	APIRequestLimit  = 100
	APIRequestWindow = time.Minute
)

// Catalog bundles the caching and coordination services used by the
// storefront handlers.
type Catalog struct {
	cache  *cache.Store
	locks  *lock.Manager
	limits *ratelimit.Limiter
}

// New creates the catalog wrappers around the given services.
func New(store *cache.Store, locks *lock.Manager, limits *ratelimit.Limiter) *Catalog {
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Catalog{
		cache:  store,
		locks:  locks,
		limits: limits,
	}
}

// GetProduct retrieves a cached product by ID.
func (c *Catalog) GetProduct(ctx context.Context, id string, dest any) (bool, error) {
	return c.cache.Get(ctx, ProductKeyPrefix+id, dest)
}

// SetProduct caches a product under the products conventions.
func (c *Catalog) SetProduct(ctx context.Context, id string, product any) error {
	return c.cache.Set(ctx, ProductKeyPrefix+id, product,
		cache.WithTTL(ProductTTL),
		cache.WithTags(TagProducts),
	)
}

// ProductByID returns the cached product or populates it via factory,
// with single-flight protection against concurrent recomputation.
func (c *Catalog) ProductByID(ctx context.Context, id string, dest any, factory cache.Factory) error {
	return c.cache.GetOrSet(ctx, ProductKeyPrefix+id, dest, factory,
		cache.WithTTL(ProductTTL),
		cache.WithTags(TagProducts),
	)
}

// SetProductList caches the full product listing.
func (c *Catalog) SetProductList(ctx context.Context, products any) error {
	return c.cache.Set(ctx, ProductsListKey, products,
		cache.WithTTL(ListTTL),
		cache.WithTags(TagProducts),
	)
}

// GetProductList retrieves the cached product listing.
func (c *Catalog) GetProductList(ctx context.Context, dest any) (bool, error) {
	return c.cache.Get(ctx, ProductsListKey, dest)
}

// InvalidateProduct removes one product and the listing that contains it.
func (c *Catalog) InvalidateProduct(ctx context.Context, id string) error {
	if _, err := c.cache.Delete(ctx, ProductKeyPrefix+id); err != nil {
		return err
	}
	_, err := c.cache.Delete(ctx, ProductsListKey)
	return err
}

// InvalidateProducts removes everything cached for the products domain,
// regardless of which wrapper cached it.
func (c *Catalog) InvalidateProducts(ctx context.Context) (int, error) {
	return c.cache.DeleteByTag(ctx, TagProducts)
}

// GetCategory retrieves a cached category by ID.
func (c *Catalog) GetCategory(ctx context.Context, id string, dest any) (bool, error) {
	return c.cache.Get(ctx, CategoryKeyPrefix+id, dest)
}

// SetCategory caches a category under the categories conventions.
func (c *Catalog) SetCategory(ctx context.Context, id string, category any) error {
	return c.cache.Set(ctx, CategoryKeyPrefix+id, category,
		cache.WithTTL(CategoryTTL),
		cache.WithTags(TagCategories),
	)
}

// CategoryByID returns the cached category or populates it via factory.
func (c *Catalog) CategoryByID(ctx context.Context, id string, dest any, factory cache.Factory) error {
	return c.cache.GetOrSet(ctx, CategoryKeyPrefix+id, dest, factory,
		cache.WithTTL(CategoryTTL),
		cache.WithTags(TagCategories),
	)
}

// SetCategoryList caches the full category listing.
func (c *Catalog) SetCategoryList(ctx context.Context, categories any) error {
	return c.cache.Set(ctx, CategoriesListKey, categories,
		cache.WithTTL(ListTTL),
		cache.WithTags(TagCategories),
	)
}

// InvalidateCategory removes one category and the category listing.
func (c *Catalog) InvalidateCategory(ctx context.Context, id string) error {
	if _, err := c.cache.Delete(ctx, CategoryKeyPrefix+id); err != nil {
		return err
	}
	_, err := c.cache.Delete(ctx, CategoriesListKey)
	return err
}

// InvalidateCategories removes everything cached for the categories domain.
func (c *Catalog) InvalidateCategories(ctx context.Context) (int, error) {
	return c.cache.DeleteByTag(ctx, TagCategories)
}

// CustomerByID returns the cached customer or populates it via factory.
func (c *Catalog) CustomerByID(ctx context.Context, id string, dest any, factory cache.Factory) error {
	return c.cache.GetOrSet(ctx, CustomerKeyPrefix+id, dest, factory,
		cache.WithTTL(CustomerTTL),
		cache.WithTags(TagCustomers),
	)
}

// InvalidateCustomer removes one cached customer.
func (c *Catalog) InvalidateCustomer(ctx context.Context, id string) error {
	_, err := c.cache.Delete(ctx, CustomerKeyPrefix+id)
	return err
}

// SetSearchResults caches a search result page under its query hash.
func (c *Catalog) SetSearchResults(ctx context.Context, queryHash string, results any) error {
	return c.cache.Set(ctx, SearchKeyPrefix+queryHash, results,
		cache.WithTTL(SearchTTL),
		cache.WithTags(TagSearch),
	)
}

// GetSearchResults retrieves a cached search result page.
func (c *Catalog) GetSearchResults(ctx context.Context, queryHash string, dest any) (bool, error) {
	return c.cache.Get(ctx, SearchKeyPrefix+queryHash, dest)
}

// InvalidateSearch removes all cached search results. Called whenever the
// underlying index changes.
func (c *Catalog) InvalidateSearch(ctx context.Context) (int, error) {
	return c.cache.DeleteByTag(ctx, TagSearch)
}

// LockOrder takes the processing lock for an order, preventing duplicate
// creation when a payment webhook is retried. Empty token means another
// handler is already processing the order.
func (c *Catalog) LockOrder(ctx context.Context, orderID string) (string, error) {
	return c.locks.Acquire(ctx, OrderLockPrefix+orderID, OrderLockTTL)
}

// ReleaseOrder releases an order's processing lock.
func (c *Catalog) ReleaseOrder(ctx context.Context, orderID, token string) (bool, error) {
	return c.locks.Release(ctx, OrderLockPrefix+orderID, token)
}

// AllowAPIRequest consumes one unit of the client's API quota and reports
// whether the request is within the platform default limit.
func (c *Catalog) AllowAPIRequest(ctx context.Context, clientID string) (ratelimit.Result, error) {
	return c.limits.Check(ctx, APILimitPrefix+clientID, APIRequestLimit, APIRequestWindow)
}
