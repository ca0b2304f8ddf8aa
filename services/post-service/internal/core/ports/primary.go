package ports

import (
	"context"

	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/domain"
)

type PostService interface {
	CreatePost(ctx context.Context, authorID, content string, mediaIDs []string) (*domain.Post, error)
	GetPost(ctx context.Context, postID string) (*domain.Post, error)
	DeletePost(ctx context.Context, postID, requesterID string) error

	// Lecture : liste globale paginée (cachée) et profil auteur (keyset, non caché)
	ListPosts(ctx context.Context, page, limit int) (domain.Page, error)
	ListPostsByAuthor(ctx context.Context, authorID string, limit int, cursor string) ([]*domain.Post, string, error)
}
