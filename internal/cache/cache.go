// Package cache holds the Redis connection and the short-lived deposit
// claims taken while a transaction hash is being verified on chain.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"stakehub/internal/config"
)

// ConnectRedis opens and pings a Redis client. An empty REDIS_ADDR returns
// (nil, nil): callers then run without claims.
func ConnectRedis(ctx context.Context, cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	opts := &redis.Options{
		Addr:            cfg.RedisAddr,
		Password:        cfg.RedisPassword,
		DB:              cfg.RedisDB,
		DialTimeout:     1 * time.Second,
		ReadTimeout:     400 * time.Millisecond,
		WriteTimeout:    400 * time.Millisecond,
		PoolSize:        50,
		MinIdleConns:    5,
		ConnMaxIdleTime: 90 * time.Second,

		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			// visible in CLIENT LIST
			_ = cn.ClientSetName(ctx, "stakehub").Err()
			return nil
		},
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
