package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/services/identity-service/internal/core/domain"
)

func newStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client)
}

func TestSaveAndConsume(t *testing.T) {
	mr, store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok", "u1", time.Hour))
	assert.True(t, mr.Exists("refresh:tok"))
	assert.Equal(t, time.Hour, mr.TTL("refresh:tok"))

	userID, err := store.Consume(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	_, err = store.Consume(ctx, "tok")
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)
}

func TestConsume_Expired(t *testing.T) {
	mr, store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok", "u1", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Consume(ctx, "tok")
	assert.ErrorIs(t, err, domain.ErrInvalidRefresh)
}
