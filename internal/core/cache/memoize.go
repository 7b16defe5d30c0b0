package cache

import (
	"context"
	"time"
)

// Memoize wraps a keyed lookup so repeated calls within ttl return the
// cached result instead of invoking fn. A cached value of the wrong
// type is treated as a miss and recomputed.
func Memoize[T any](c *Cache, ttl time.Duration, fn func(ctx context.Context, key string) (T, error)) func(ctx context.Context, key string) (T, error) {
	return func(ctx context.Context, key string) (T, error) {
		if raw, ok := c.Get(key); ok {
			if value, ok := raw.(T); ok {
				return value, nil
			}
		}

		value, err := fn(ctx, key)
		if err != nil {
			var zero T
			return zero, err
		}

		c.Set(key, value, ttl)
		return value, nil
	}
}
