package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/domain"
)

type PostRepository interface {
	Insert(ctx context.Context, post *domain.Post) error
	FindByID(ctx context.Context, postID string) (*domain.Post, error)
	// FindByOwnerAndID renvoie ErrPostNotFound si le post n'existe pas OU n'appartient pas à ownerID.
	FindByOwnerAndID(ctx context.Context, ownerID, postID string) (*domain.Post, error)
	// DeleteByID renvoie false si rien n'a été supprimé.
	DeleteByID(ctx context.Context, postID string) (bool, error)

	// ListPage : offset classique pour la liste globale, total inclus
	ListPage(ctx context.Context, offset, limit int) ([]*domain.Post, int, error)
	// ListByAuthor : pagination keyset, cursorTime est la date du dernier post vu
	ListByAuthor(ctx context.Context, authorID string, limit int, cursorTime time.Time) ([]*domain.Post, error)
}

type EventPublisher interface {
	PublishPostCreated(ctx context.Context, post *domain.Post) error
	PublishPostDeleted(ctx context.Context, post *domain.Post) error
}
