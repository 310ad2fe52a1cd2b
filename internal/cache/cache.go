package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medagenda/booking-api/internal/metrics"
)

// SlotsKey holds the serialized available-slots listing.
const SlotsKey = "available_slots"

// Cache is a best-effort key-value store. Implementations must never
// propagate backend failures: a failed read is a miss, a failed write
// is a no-op. The database stays the source of truth either way.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type redisCache struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

func NewRedisCache(client *redis.Client, m *metrics.Metrics) Cache {
	return &redisCache{client: client, metrics: m}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache get failed key=%s err=%v", key, err)
			c.metrics.ObserveCacheEvent("failure")
		}
		log.Printf("cache miss key=%s", key)
		c.metrics.ObserveCacheEvent("miss")
		return nil, false
	}

	log.Printf("cache hit key=%s", key)
	c.metrics.ObserveCacheEvent("hit")
	return data, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("cache set failed key=%s err=%v", key, err)
		c.metrics.ObserveCacheEvent("failure")
		return
	}
	log.Printf("cache set key=%s ttl=%s", key, ttl)
	c.metrics.ObserveCacheEvent("set")
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Printf("cache invalidate failed key=%s err=%v", key, err)
		c.metrics.ObserveCacheEvent("failure")
		return
	}
	log.Printf("cache invalidate key=%s", key)
	c.metrics.ObserveCacheEvent("invalidate")
}

type disabledCache struct{}

// Disabled returns a no-op cache, used when redis is unreachable at
// startup. Every read is a miss.
func Disabled() Cache {
	return disabledCache{}
}

func (disabledCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (disabledCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}

func (disabledCache) Delete(ctx context.Context, key string) {}
