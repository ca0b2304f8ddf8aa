package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/pkg/eventbus"
	"github.com/jupiterclapton/cenackle/pkg/events"
)

// sharedBus garde le bus mémoire ouvert entre les commandes et signale les abonnements.
type sharedBus struct {
	*eventbus.MemoryBus
	subscribed chan struct{}
	once       sync.Once
}

func (b *sharedBus) Subscribe(ctx context.Context, key string, h eventbus.Handler, opts ...eventbus.SubscribeOption) (eventbus.Subscription, error) {
	sub, err := b.MemoryBus.Subscribe(ctx, key, h, opts...)
	b.once.Do(func() { close(b.subscribed) })
	return sub, err
}

func (b *sharedBus) Close() error { return nil }

func newSharedBus(t *testing.T) *sharedBus {
	t.Helper()
	mem := eventbus.NewMemoryBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = mem.Close() })
	return &sharedBus{MemoryBus: mem, subscribed: make(chan struct{})}
}

func (b *sharedBus) dial(context.Context, string, *slog.Logger) (eventbus.Bus, error) {
	return b, nil
}

func TestPublish_TypedEvent(t *testing.T) {
	bus := newSharedBus(t)
	ctx := context.Background()
	require.NoError(t, bus.DeclareTopic(ctx, events.Exchange, false))

	got := make(chan eventbus.Delivery, 1)
	_, err := bus.MemoryBus.Subscribe(ctx, events.RoutingKeyPostDeleted, func(_ context.Context, d eventbus.Delivery) error {
		got <- d
		return nil
	})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	root := newRootCmd(out, bus.dial)
	root.SetArgs([]string{"publish", "post.deleted", `{"postId":"p1","userId":"u1","mediaIds":["m1"]}`})
	require.NoError(t, root.ExecuteContext(ctx))
	assert.Contains(t, out.String(), "published post.deleted")

	select {
	case d := <-got:
		assert.Equal(t, events.TypePostDeleted, d.Envelope.Type)
		assert.Equal(t, events.Version, d.Envelope.Version)
		var payload events.PostDeleted
		require.NoError(t, d.Decode(&payload))
		assert.Equal(t, events.PostDeleted{PostID: "p1", UserID: "u1", MediaIDs: []string{"m1"}}, payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublish_RejectsUnknownFields(t *testing.T) {
	bus := newSharedBus(t)
	root := newRootCmd(io.Discard, bus.dial)
	root.SetArgs([]string{"publish", "post.created", `{"postID":"p1","body":"typo"}`})
	assert.Error(t, root.ExecuteContext(context.Background()))
}

func TestTail_StopsAfterCount(t *testing.T) {
	bus := newSharedBus(t)
	out := &bytes.Buffer{}
	root := newRootCmd(out, bus.dial)
	root.SetArgs([]string{"tail", "post.*", "-n", "2"})

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(context.Background()) }()

	select {
	case <-bus.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("tail did not subscribe")
	}
	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.RoutingKeyPostCreated, events.PostCreated{PostID: "p1"}))
	require.NoError(t, bus.Publish(ctx, events.RoutingKeyPostDeleted, events.PostDeleted{PostID: "p1"}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tail did not stop")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	var first tailLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, events.RoutingKeyPostCreated, first.RoutingKey)
	assert.Equal(t, events.TypePostCreated, first.Envelope.Type)
}
