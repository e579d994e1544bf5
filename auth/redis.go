package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps the token in Redis so several processes acting as the same
// user share one login.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisStore stores under "<prefix>:auth_token", or "auth_token" when
// prefix is empty.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	key := TokenKey
	if prefix != "" {
		key = prefix + ":" + TokenKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Get(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return token, nil
}

func (s *RedisStore) Set(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}
