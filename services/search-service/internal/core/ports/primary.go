package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/domain"
)

// --- DRIVING (Ce que le service expose) ---

type SearchService interface {
	// IndexPost est appelé quand un event "PostCreated" arrive. Idempotent.
	IndexPost(ctx context.Context, p domain.Projection) error

	// RemovePost est appelé quand un event "PostDeleted" arrive. Idempotent.
	RemovePost(ctx context.Context, postID string) error

	// Search est appelé par la gateway
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.Hit, error)
}
