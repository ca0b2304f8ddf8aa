package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
	"github.com/jupiterclapton/cenackle/pkg/eventbus"
	"github.com/jupiterclapton/cenackle/pkg/events"
	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/ports"
)

// Consumer relie les événements de cycle de vie des posts à l'index de recherche.
type Consumer struct {
	service ports.SearchService
	logger  *slog.Logger
}

func NewConsumer(service ports.SearchService, logger *slog.Logger) *Consumer {
	return &Consumer{service: service, logger: logger}
}

// Register abonne le service aux deux routing keys. Avec queue non vide, chaque abonnement
// utilise une file nommée et durable "<queue>-<action>" au lieu d'une file anonyme.
func (c *Consumer) Register(ctx context.Context, sub eventbus.Subscriber, queue string, opts ...eventbus.SubscribeOption) error {
	if _, err := sub.Subscribe(ctx, events.RoutingKeyPostCreated, c.HandlePostCreated, withQueue(opts, queue, "created")...); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.RoutingKeyPostCreated, err)
	}
	if _, err := sub.Subscribe(ctx, events.RoutingKeyPostDeleted, c.HandlePostDeleted, withQueue(opts, queue, "deleted")...); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.RoutingKeyPostDeleted, err)
	}
	return nil
}

func (c *Consumer) HandlePostCreated(ctx context.Context, d eventbus.Delivery) error {
	if err := d.Expect(events.TypePostCreated, events.Version); err != nil {
		return err
	}
	var event events.PostCreated
	if err := d.Decode(&event); err != nil {
		return err
	}

	c.logger.Info("📨 Search Service received event", "post_id", event.PostID, "event_type", events.TypePostCreated, "attempt", d.Attempt)

	err := c.service.IndexPost(ctx, domain.Projection{
		PostID:    event.PostID,
		UserID:    event.UserID,
		Content:   event.Content,
		CreatedAt: event.CreatedAt,
	})
	return classify(err)
}

func (c *Consumer) HandlePostDeleted(ctx context.Context, d eventbus.Delivery) error {
	if err := d.Expect(events.TypePostDeleted, events.Version); err != nil {
		return err
	}
	var event events.PostDeleted
	if err := d.Decode(&event); err != nil {
		return err
	}

	c.logger.Info("📨 Search Service received event", "post_id", event.PostID, "event_type", events.TypePostDeleted, "attempt", d.Attempt)
	return classify(c.service.RemovePost(ctx, event.PostID))
}

// classify : un événement invalide ne le sera pas moins à la prochaine livraison.
func classify(err error) error {
	if errors.Is(err, apperr.ErrValidation) {
		return eventbus.Discard(err)
	}
	return err
}

func withQueue(opts []eventbus.SubscribeOption, queue, action string) []eventbus.SubscribeOption {
	if queue == "" {
		return opts
	}
	return append(append([]eventbus.SubscribeOption{}, opts...), eventbus.WithQueue(queue+"-"+action))
}
