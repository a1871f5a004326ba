package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// GetBool reads a cached boolean flag. The second return reports a cache hit.
func (c *Cache) GetBool(ctx context.Context, key string) (bool, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

func (c *Cache) SetBool(ctx context.Context, key string, v bool, ttl time.Duration) error {
	s := "0"
	if v {
		s = "1"
	}
	return c.client.Set(ctx, key, s, ttl).Err()
}
