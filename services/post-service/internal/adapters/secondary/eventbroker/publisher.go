package eventbroker

import (
	"context"
	"log/slog"

	"github.com/jupiterclapton/cenackle/pkg/eventbus"
	"github.com/jupiterclapton/cenackle/pkg/events"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/domain"
)

// Publisher traduit les posts du domaine en événements de cycle de vie.
type Publisher struct {
	bus    eventbus.Publisher
	logger *slog.Logger
}

func NewPublisher(bus eventbus.Publisher, logger *slog.Logger) *Publisher {
	return &Publisher{bus: bus, logger: logger}
}

func (p *Publisher) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	event := events.PostCreated{
		PostID:    post.ID,
		UserID:    post.UserID,
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
	}
	p.logger.Info("📢 Publishing event", "routing_key", event.RoutingKey(), "post_id", post.ID)
	return p.bus.Publish(ctx, event.RoutingKey(), event)
}

func (p *Publisher) PublishPostDeleted(ctx context.Context, post *domain.Post) error {
	mediaIDs := post.MediaIDs
	if mediaIDs == nil {
		mediaIDs = []string{}
	}
	event := events.PostDeleted{
		PostID:   post.ID,
		UserID:   post.UserID,
		MediaIDs: mediaIDs,
	}
	p.logger.Info("📢 Publishing event", "routing_key", event.RoutingKey(), "post_id", post.ID)
	return p.bus.Publish(ctx, event.RoutingKey(), event)
}
