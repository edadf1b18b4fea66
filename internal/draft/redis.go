package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	owns   bool
}

// NewRedisStore wraps a client the caller keeps ownership of.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// DialRedis connects to redisURL and returns a store that closes the
// connection with itself.
func DialRedis(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("draft: parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("draft: connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl, owns: true}, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (string, bool, error) {
	text, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("draft: redis get: %w", err)
	}
	return text, true, nil
}

func (s *RedisStore) Save(ctx context.Context, key, text string) error {
	if err := s.client.Set(ctx, key, text, expiry(s.ttl)).Err(); err != nil {
		return fmt.Errorf("draft: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("draft: redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if !s.owns {
		return nil
	}
	return s.client.Close()
}
