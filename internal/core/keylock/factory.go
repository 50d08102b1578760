package keylock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// newRedisClient is injectable for testing.
var newRedisClient = func(cfg RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// New builds the Locker selected by cfg. The returned close function
// releases the backend connection, if any.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Locker, func() error, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryLocker(), func() error { return nil }, nil
	case BackendRedis:
		client := newRedisClient(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		locker := NewRedisLocker(client,
			WithKeyPrefix(cfg.KeyPrefix),
			WithTTL(cfg.TTL),
			WithRetryInterval(cfg.RetryInterval),
			WithLogger(logger),
		)
		return locker, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported lock backend: %s", cfg.Backend)
	}
}
