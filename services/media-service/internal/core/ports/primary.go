package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/domain"
)

type MediaService interface {
	Upload(ctx context.Context, userID string, file domain.Upload) (*domain.MediaAsset, error)
	ListMedia(ctx context.Context) ([]domain.MediaAsset, error)

	// CleanupPost est appelé quand un event "PostDeleted" arrive. Idempotent.
	CleanupPost(ctx context.Context, postID, ownerID string, mediaIDs []string) error
}
