package storage

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

// Cache wraps a table backend with Redis-backed caching of unfiltered reads.
// Writes to a table evict every cached read of that table. A zero TTL
// disables caching.
type Cache struct {
	base  tables.Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching backend using the provided Redis client and TTL.
func NewCache(base tables.Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) enabled() bool { return c.redis != nil && c.ttl > 0 }

func (c *Cache) List(ctx context.Context, table string, columns []string, filter *tables.Filter) ([]tables.Record, error) {
	if filter != nil || !c.enabled() {
		return c.base.List(ctx, table, columns, filter)
	}
	key := listCacheKey(table, columns)
	if records, ok := c.load(ctx, key); ok {
		return records, nil
	}
	records, err := c.base.List(ctx, table, columns, nil)
	if err != nil {
		return nil, err
	}
	c.store(ctx, table, key, records)
	return records, nil
}

func (c *Cache) Insert(ctx context.Context, table string, records []tables.Record) ([]tables.Record, error) {
	out, err := c.base.Insert(ctx, table, records)
	if len(out) > 0 {
		c.evict(ctx, table)
	}
	return out, err
}

func (c *Cache) Update(ctx context.Context, table string, filter tables.Filter, patch tables.Record) (int, error) {
	n, err := c.base.Update(ctx, table, filter, patch)
	if n > 0 {
		c.evict(ctx, table)
	}
	return n, err
}

func (c *Cache) Delete(ctx context.Context, table string, filter tables.Filter) (int, error) {
	n, err := c.base.Delete(ctx, table, filter)
	if n > 0 {
		c.evict(ctx, table)
	}
	return n, err
}

func (c *Cache) load(ctx context.Context, key string) ([]tables.Record, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var records []tables.Record
	if err := sonic.Unmarshal(data, &records); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return records, true
}

func (c *Cache) store(ctx context.Context, table, key string, records []tables.Record) {
	data, err := sonic.Marshal(records)
	if err != nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, c.ttl)
		pipe.SAdd(ctx, tableKeysKey(table), key)
		pipe.Expire(ctx, tableKeysKey(table), c.ttl)
		return nil
	})
}

func (c *Cache) evict(ctx context.Context, table string) {
	if c.redis == nil {
		return
	}
	keys, err := c.redis.SMembers(ctx, tableKeysKey(table)).Result()
	if err != nil {
		return
	}
	_, _ = c.redis.Del(ctx, append(keys, tableKeysKey(table))...).Result()
}

func listCacheKey(table string, columns []string) string {
	if columns == nil {
		return "tables:" + table + ":*"
	}
	return "tables:" + table + ":" + strings.Join(columns, ",")
}

func tableKeysKey(table string) string {
	return "tables:" + table + ":keys"
}
