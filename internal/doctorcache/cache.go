package doctorcache

import (
	"context"
	"slices"

	"github.com/patrickmn/go-cache"
)

// Cache memoizes one []T per doctor id until Invalidate is called.
// Entries never expire on their own.
type Cache[T any] struct {
	c *cache.Cache
}

func New[T any]() *Cache[T] {
	return &Cache[T]{c: cache.New(cache.NoExpiration, 0)}
}

// Get returns a copy of the cached rows so callers cannot mutate the cache.
func (c *Cache[T]) Get(doctorID string) ([]T, bool) {
	v, ok := c.c.Get(doctorID)
	if !ok {
		return nil, false
	}
	return slices.Clone(v.([]T)), true
}

func (c *Cache[T]) Set(doctorID string, rows []T) {
	c.c.Set(doctorID, slices.Clone(rows), cache.NoExpiration)
}

func (c *Cache[T]) Invalidate(doctorID string) {
	c.c.Delete(doctorID)
}

func (c *Cache[T]) Flush() {
	c.c.Flush()
}

// Load returns the cached rows, calling load on a miss.
func (c *Cache[T]) Load(ctx context.Context, doctorID string, load func(context.Context) ([]T, error)) ([]T, error) {
	if rows, ok := c.Get(doctorID); ok {
		return rows, nil
	}
	return c.Reload(ctx, doctorID, load)
}

// Reload always calls load and replaces the cached entry on success.
func (c *Cache[T]) Reload(ctx context.Context, doctorID string, load func(context.Context) ([]T, error)) ([]T, error) {
	rows, err := load(ctx)
	if err != nil {
		c.Invalidate(doctorID)
		return nil, err
	}
	c.Set(doctorID, rows)
	return slices.Clone(rows), nil
}
