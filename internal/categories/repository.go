// Package categories holds the category list fetched from the remote service.
//
// The repository is built once at startup and handed to whoever needs it.
// The first call loads from the network; later calls are served from cache.
package categories

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"expensinator/internal/cache"
	"expensinator/internal/core"
	"expensinator/internal/log"
)

const cacheKey = "categories"

// Fetcher loads categories from the remote service.
type Fetcher interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// Repository caches categories for the session.
type Repository struct {
	fetcher Fetcher
	cache   *cache.LRUCache[[]core.Category]
	group   singleflight.Group
	logger  *log.Logger
}

// NewRepository creates a repository. A ttl of zero keeps categories for the
// lifetime of the process.
func NewRepository(fetcher Fetcher, ttl time.Duration, logger *log.Logger) *Repository {
	if logger == nil {
		logger = log.Discard()
	}
	return &Repository{
		fetcher: fetcher,
		cache:   cache.NewLRUCache[[]core.Category](1, ttl),
		logger:  logger.WithComponent(log.ComponentCategories),
	}
}

// Cache exposes the backing cache so it can be registered for cleanup.
func (r *Repository) Cache() cache.Cleaner { return r.cache }

// All returns the categories, loading them on first use. Concurrent callers
// share one request.
func (r *Repository) All(ctx context.Context) ([]core.Category, error) {
	if cats, ok := r.cache.Get(cacheKey); ok {
		return cats, nil
	}

	v, err, _ := r.group.Do(cacheKey, func() (any, error) {
		if cats, ok := r.cache.Get(cacheKey); ok {
			return cats, nil
		}
		cats, err := r.fetcher.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		r.cache.Set(cacheKey, cats)
		r.logger.InfoContext(ctx, "Categories loaded", log.FieldCount, len(cats))
		return cats, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return v.([]core.Category), nil
}

// Name resolves a category ID for display. It prefers the server's list and
// falls back to the built-in taxonomy, then to "Unknown".
func (r *Repository) Name(ctx context.Context, id int64) string {
	if cats, err := r.All(ctx); err == nil {
		for _, c := range cats {
			if c.CategoryID != nil && *c.CategoryID == id {
				return c.Name
			}
		}
	}
	if name, ok := core.CategoryName(id); ok {
		return name
	}
	return "Unknown"
}

// Refresh drops the cached list so the next call reloads it.
func (r *Repository) Refresh() {
	r.cache.Purge()
}
