package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/cenackle/pkg/cache"
	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/domain"
)

// RedisStore garde refresh:{token} -> userID ; l'expiration Redis porte la durée de vie.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func key(token string) string {
	return cache.Key("refresh", token)
}

func (s *RedisStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Consume : GETDEL est atomique, deux refresh concurrents ne peuvent pas réussir tous les deux.
func (s *RedisStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrInvalidRefresh
	}
	if err != nil {
		return "", fmt.Errorf("redis getdel: %w", err)
	}
	return userID, nil
}
