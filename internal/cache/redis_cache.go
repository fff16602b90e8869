package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "facturia:table:"

type RedisTableCache struct {
	client *redis.Client
}

func NewRedisTableCache(addr string, password string, db int) *RedisTableCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisTableCache{client: client}
}

func (c *RedisTableCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTableCache) Close() error {
	return c.client.Close()
}

func (c *RedisTableCache) Get(ctx context.Context, table string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, keyPrefix+table).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (c *RedisTableCache) Set(ctx context.Context, table string, payload []byte, ttl time.Duration) error {
	return c.client.Set(ctx, keyPrefix+table, payload, ttl).Err()
}

func (c *RedisTableCache) Invalidate(ctx context.Context, table string) error {
	return c.client.Del(ctx, keyPrefix+table).Err()
}
