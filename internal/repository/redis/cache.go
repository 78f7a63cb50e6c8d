package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache holds short-lived read models of events. Postgres stays the source of
// truth; every entry is disposable.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

// GetOrSetJSON reads key, falling back to loader on a miss. Concurrent misses
// on the same key share one loader call. An unreadable entry or a cache
// outage counts as a miss.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if v, ok := lookup[T](ctx, c, key); ok {
		return v, nil
	}

	shared, err, _ := c.sf.Do(key, func() (any, error) {
		if v, ok := lookup[T](ctx, c, key); ok {
			return v, nil
		}

		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		if b, err := json.Marshal(v); err == nil {
			_ = c.rdb.Set(ctx, key, string(b), ttl).Err()
		}

		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := shared.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache %s: unexpected %T", key, shared)
	}

	return v, nil
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T

	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return v, false
	}

	if err := json.Unmarshal(b, &v); err != nil {
		var zero T
		return zero, false
	}

	return v, true
}

// InvalidateEvent drops the summary and availability entries of an event.
func (c *Cache) InvalidateEvent(ctx context.Context, eventID int64) error {
	err := c.rdb.Del(ctx, KeyEventSummary(eventID), KeyEventAvailability(eventID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidate event %d: %w", eventID, err)
	}

	return nil
}
