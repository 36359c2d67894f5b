package studytime

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each total as a decimal string under its key.
type RedisStore struct {
	rdb *redis.Client
}

// ConnectRedis creates a Redis client and verifies connectivity.
func ConnectRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (int64, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load study time: %w", err)
	}
	seconds, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("study time at %s is not an integer: %w", key, err)
	}
	return seconds, nil
}

func (s *RedisStore) Add(ctx context.Context, key string, delta int64) (int64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("negative study time delta %d", delta)
	}
	seconds, err := s.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("add study time: %w", err)
	}
	return seconds, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
