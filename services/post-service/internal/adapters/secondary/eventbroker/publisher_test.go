package eventbroker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/cenackle/pkg/eventbus"
	"github.com/jupiterclapton/cenackle/pkg/events"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/domain"
)

func TestPublisher_EmitsLifecycleEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewMemoryBus(logger)
	t.Cleanup(func() { _ = bus.Close() })
	ctx := context.Background()
	require.NoError(t, bus.DeclareTopic(ctx, events.Exchange, false))

	var (
		mu  sync.Mutex
		got []eventbus.Delivery
	)
	_, err := bus.Subscribe(ctx, "post.*", func(_ context.Context, d eventbus.Delivery) error {
		mu.Lock()
		got = append(got, d)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	pub := NewPublisher(bus, logger)
	post := &domain.Post{ID: "p1", UserID: "u1", Content: "hello", CreatedAt: time.Now().UTC()}
	require.NoError(t, pub.PublishPostCreated(ctx, post))
	require.NoError(t, pub.PublishPostDeleted(ctx, post))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, bus.WaitIdle(waitCtx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)

	assert.Equal(t, events.RoutingKeyPostCreated, got[0].RoutingKey)
	assert.Equal(t, events.TypePostCreated, got[0].Envelope.Type)
	var created events.PostCreated
	require.NoError(t, got[0].Decode(&created))
	assert.Equal(t, "hello", created.Content)

	assert.Equal(t, events.TypePostDeleted, got[1].Envelope.Type)
	var deleted events.PostDeleted
	require.NoError(t, got[1].Decode(&deleted))
	assert.Equal(t, "u1", deleted.UserID)
	assert.NotNil(t, deleted.MediaIDs)
}
