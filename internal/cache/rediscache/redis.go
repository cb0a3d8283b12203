package rediscache

import (
	"context"
	"encoding"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ARF-DEV/caffeine_jukebox/internal/cache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ cache.Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
}

func CreateCache(opt *redis.Options) *RedisCache {
	return &RedisCache{client: redis.NewClient(opt)}
}

func (rc *RedisCache) GetAndParse(ctx context.Context, key string, dst interface{}) error {
	res, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return cache.ErrMiss
	}
	if err != nil {
		return errors.Wrapf(err, "redis get %s", key)
	}

	if len(res) == 0 {
		return fmt.Errorf("redis key (%s)'s value len is 0", key)
	}
	if err = json.Unmarshal(res, dst); err != nil {
		return errors.Wrapf(err, "decode %s", key)
	}

	return nil
}

func (rc *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	return rc.SetExp(ctx, key, value, 0)
}

// SetExp stores value as JSON unless it already knows how to marshal itself.
func (rc *RedisCache) SetExp(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	if _, ok := value.(encoding.BinaryMarshaler); !ok {
		b, err := json.Marshal(value)
		if err != nil {
			return errors.Wrapf(err, "encode %s", key)
		}
		value = b
	}
	return errors.Wrapf(rc.client.Set(ctx, key, value, exp).Err(), "redis set %s", key)
}

func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
