// Package cache fournit le cache read-through partagé par les services et son invalidation
// par préfixe de clé.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// ErrMiss : clé absente ou expirée.
var ErrMiss = errors.New("cache miss")

// Store est le port vers le stockage clé/valeur.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// scanCount est un indice pour SCAN, pas une limite.
const scanCount = 500

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient ouvre le client partagé du processus, instrumenté OTel, et vérifie la connexion.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("redis tracing: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// DeleteByPrefix parcourt l'espace de clés avec SCAN (jamais KEYS) et supprime chaque lot
// dans un pipeline. Le parcours va jusqu'au curseur 0 : aucune clé du préfixe n'est oubliée.
func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	pattern := escapeGlob(prefix) + "*"
	deleted := 0

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", pattern, err)
		}

		if len(keys) > 0 {
			pipe := s.client.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return deleted, fmt.Errorf("delete %d keys: %w", len(keys), err)
			}
			deleted += len(keys)
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// escapeGlob neutralise les métacaractères du glob Redis présents dans le préfixe.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
