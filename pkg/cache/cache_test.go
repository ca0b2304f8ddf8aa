package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
)

type item struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func setup(t *testing.T) (*miniredis.Miniredis, *RedisStore, *Invalidator) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	inv := NewInvalidator(store, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithBackoff(time.Millisecond, 5*time.Millisecond))
	return mr, store, inv
}

type countingLoader struct {
	calls int
	value item
	err   error
}

func (l *countingLoader) load(context.Context) (item, error) {
	l.calls++
	return l.value, l.err
}

func TestReadThrough_HitThenInvalidate(t *testing.T) {
	_, _, inv := setup(t)
	ctx := context.Background()
	loader := &countingLoader{value: item{ID: "42", Body: "hello"}}

	for i := 0; i < 2; i++ {
		got, err := ReadThrough(ctx, inv, "post:42", time.Hour, loader.load)
		require.NoError(t, err)
		assert.Equal(t, loader.value, got)
	}
	assert.Equal(t, 1, loader.calls)

	require.NoError(t, inv.InvalidateNamespace(ctx, "post:"))

	_, err := ReadThrough(ctx, inv, "post:42", time.Hour, loader.load)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestReadThrough_StoresWithTTL(t *testing.T) {
	mr, _, inv := setup(t)
	loader := &countingLoader{value: item{ID: "1"}}

	_, err := ReadThrough(context.Background(), inv, "posts:1:10", 300*time.Second, loader.load)
	require.NoError(t, err)

	assert.True(t, mr.Exists("posts:1:10"))
	assert.Equal(t, 300*time.Second, mr.TTL("posts:1:10"))

	mr.FastForward(301 * time.Second)
	assert.False(t, mr.Exists("posts:1:10"))
}

func TestReadThrough_LoaderErrorIsNotCached(t *testing.T) {
	mr, _, inv := setup(t)
	boom := errors.New("db down")
	loader := &countingLoader{err: boom}

	_, err := ReadThrough(context.Background(), inv, "post:7", time.Hour, loader.load)
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("post:7"))

	loader.err = nil
	_, err = ReadThrough(context.Background(), inv, "post:7", time.Hour, loader.load)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestReadThrough_BrokenStoreFallsBackToLoader(t *testing.T) {
	mr, _, inv := setup(t)
	mr.Close()
	loader := &countingLoader{value: item{ID: "9"}}

	got, err := ReadThrough(context.Background(), inv, "post:9", time.Hour, loader.load)
	require.NoError(t, err)
	assert.Equal(t, "9", got.ID)
}

func TestReadThrough_CorruptedEntryReloads(t *testing.T) {
	mr, _, inv := setup(t)
	require.NoError(t, mr.Set("post:3", "{not json"))
	loader := &countingLoader{value: item{ID: "3"}}

	got, err := ReadThrough(context.Background(), inv, "post:3", time.Hour, loader.load)
	require.NoError(t, err)
	assert.Equal(t, "3", got.ID)
	assert.Equal(t, 1, loader.calls)
}

func TestRedisStore_DeleteByPrefixOnlyTouchesNamespace(t *testing.T) {
	mr, store, _ := setup(t)
	for i := 0; i < 1200; i++ {
		require.NoError(t, mr.Set(Key("posts", i, 10), "x"))
	}
	require.NoError(t, mr.Set("post:1", "x"))
	require.NoError(t, mr.Set("search:go:10", "x"))

	n, err := store.DeleteByPrefix(context.Background(), "posts:")
	require.NoError(t, err)
	assert.Equal(t, 1200, n)
	assert.True(t, mr.Exists("post:1"))
	assert.True(t, mr.Exists("search:go:10"))
	assert.False(t, mr.Exists("posts:0:10"))
}

func TestRedisStore_PrefixIsNotAGlob(t *testing.T) {
	mr, store, _ := setup(t)
	require.NoError(t, mr.Set("search:a*:10", "x"))
	require.NoError(t, mr.Set("search:abc:10", "x"))

	n, err := store.DeleteByPrefix(context.Background(), "search:a*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("search:abc:10"))
}

func TestRedisStore_GetMiss(t *testing.T) {
	_, store, _ := setup(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMiss)
}

type flakyStore struct {
	Store
	failures int
	calls    int
}

func (f *flakyStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, errors.New("connection reset")
	}
	return f.Store.DeleteByPrefix(ctx, prefix)
}

func TestInvalidateNamespace_RetriesThenSucceeds(t *testing.T) {
	_, store, _ := setup(t)
	flaky := &flakyStore{Store: store, failures: 2}
	inv := NewInvalidator(flaky, nil, WithBackoff(time.Millisecond, 2*time.Millisecond))

	require.NoError(t, inv.InvalidateNamespace(context.Background(), "posts:"))
	assert.Equal(t, 3, flaky.calls)
}

func TestInvalidateNamespace_SurfacesStorageError(t *testing.T) {
	_, store, _ := setup(t)
	flaky := &flakyStore{Store: store, failures: 100}
	inv := NewInvalidator(flaky, nil, WithMaxTries(3), WithBackoff(time.Millisecond, 2*time.Millisecond))

	err := inv.InvalidateNamespace(context.Background(), "posts:")
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.Equal(t, 3, flaky.calls)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "posts:2:10", Key("posts", 2, 10))
	assert.Equal(t, "post:42", Key("post", "42"))
	assert.Equal(t, "posts:", Prefix("posts"))
	assert.Equal(t, "search:go:10", Key("search", "go", 10))
}
