package cachesvc

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
)

// RedisCache is a core.Cache over go-redis. Keys are namespaced with prefix.
type RedisCache struct {
	c      *redis.Client
	prefix string
}

var _ core.Cache = (*RedisCache)(nil) // interface compliance check

func NewRedisClient(conf core.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
}

func NewRedisCache(c *redis.Client, prefix string) *RedisCache {
	return &RedisCache{c: c, prefix: prefix}
}

// Open connects to redis and checks the connection. It returns a nil cache when no address is configured.
func Open(ctx context.Context, conf *core.Config) (*RedisCache, error) {
	if conf.Redis.Addr == "" {
		return nil, nil
	}
	c := NewRedisClient(conf.Redis)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return NewRedisCache(c, conf.AppName+":"), nil
}

func (rc *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := rc.c.Get(ctx, rc.prefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", core.ErrCacheMiss
		}
		return "", errors.Wrapf(err, "getting %s", key)
	}
	return val, nil
}

func (rc *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.Wrapf(rc.c.Set(ctx, rc.prefix+key, value, ttl).Err(), "setting %s", key)
}

func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, rc.prefix+k)
	}
	return errors.Wrap(rc.c.Del(ctx, full...).Err(), "deleting keys")
}

func (rc *RedisCache) Close() error {
	return rc.c.Close()
}
