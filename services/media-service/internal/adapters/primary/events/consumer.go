package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
	"github.com/jupiterclapton/cenackle/pkg/eventbus"
	"github.com/jupiterclapton/cenackle/pkg/events"
	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/ports"
)

// Consumer nettoie les médias des posts supprimés.
type Consumer struct {
	service ports.MediaService
	logger  *slog.Logger
}

func NewConsumer(service ports.MediaService, logger *slog.Logger) *Consumer {
	return &Consumer{service: service, logger: logger}
}

// Register abonne le janitor à post.deleted. queue non vide => file durable "<queue>-deleted".
func (c *Consumer) Register(ctx context.Context, sub eventbus.Subscriber, queue string, opts ...eventbus.SubscribeOption) error {
	if queue != "" {
		opts = append(append([]eventbus.SubscribeOption{}, opts...), eventbus.WithQueue(queue+"-deleted"))
	}
	if _, err := sub.Subscribe(ctx, events.RoutingKeyPostDeleted, c.HandlePostDeleted, opts...); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.RoutingKeyPostDeleted, err)
	}
	return nil
}

func (c *Consumer) HandlePostDeleted(ctx context.Context, d eventbus.Delivery) error {
	if err := d.Expect(events.TypePostDeleted, events.Version); err != nil {
		return err
	}
	var event events.PostDeleted
	if err := d.Decode(&event); err != nil {
		return err
	}
	if event.PostID == "" {
		return eventbus.Discard(fmt.Errorf("%w: post.deleted without postId", apperr.ErrValidation))
	}

	c.logger.Info("📨 Media Service received event",
		"post_id", event.PostID,
		"event_type", events.TypePostDeleted,
		"media_count", len(event.MediaIDs),
		"attempt", d.Attempt,
	)

	err := c.service.CleanupPost(ctx, event.PostID, event.UserID, event.MediaIDs)
	if errors.Is(err, apperr.ErrValidation) {
		return eventbus.Discard(err)
	}
	return err
}
