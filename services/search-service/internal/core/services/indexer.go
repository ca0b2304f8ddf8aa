package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
	"github.com/jupiterclapton/cenackle/pkg/cache"
	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/ports"
)

const searchNamespace = "search"

const (
	DefaultLimit = 10
	MaxLimit     = 50
	DefaultTTL   = 120 * time.Second
)

type SearchService struct {
	repo   ports.ProjectionRepository
	cache  *cache.Invalidator
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewSearchService(repo ports.ProjectionRepository, c *cache.Invalidator, ttl time.Duration, logger *slog.Logger) *SearchService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SearchService{
		repo:   repo,
		cache:  c,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IndexPost applique PostCreated. Une projection déjà présente n'est pas une erreur
// (livraison au moins une fois), un post déjà supprimé non plus : les deux routing keys
// ont chacune leur file, un PostDeleted peut donc passer avant son PostCreated.
func (s *SearchService) IndexPost(ctx context.Context, p domain.Projection) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.IndexedAt = s.now()

	inserted, err := s.repo.Insert(ctx, p)
	if err != nil {
		return fmt.Errorf("%w: index post %s: %v", apperr.ErrProjection, p.PostID, err)
	}
	if inserted {
		s.logger.Info("✅ Search projection created", "post_id", p.PostID)
	} else {
		s.logger.Debug("Search projection already present or post deleted", "post_id", p.PostID)
	}

	// On invalide même sur doublon : la redélivrance rattrape une invalidation ratée.
	return s.invalidate(ctx, p.PostID)
}

// RemovePost applique PostDeleted. Une projection absente n'est pas une erreur ;
// la pierre tombale est posée dans tous les cas.
func (s *SearchService) RemovePost(ctx context.Context, postID string) error {
	if strings.TrimSpace(postID) == "" {
		return domain.ErrInvalidProjection
	}

	deleted, err := s.repo.MarkDeleted(ctx, postID, s.now())
	if err != nil {
		return fmt.Errorf("%w: remove post %s: %v", apperr.ErrProjection, postID, err)
	}
	if deleted {
		s.logger.Info("🗑️ Search projection deleted", "post_id", postID)
	} else {
		s.logger.Debug("Search projection already absent", "post_id", postID)
	}
	return s.invalidate(ctx, postID)
}

func (s *SearchService) invalidate(ctx context.Context, postID string) error {
	if err := s.cache.InvalidateNamespace(ctx, cache.Prefix(searchNamespace)); err != nil {
		return fmt.Errorf("%w: post %s: %v", apperr.ErrProjection, postID, err)
	}
	return nil
}

func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Hit, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	limit := req.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return cache.ReadThrough(ctx, s.cache, cache.Key(searchNamespace, query, limit), s.ttl,
		func(ctx context.Context) ([]domain.Hit, error) {
			hits, err := s.repo.Search(ctx, query, limit)
			if err != nil {
				return nil, fmt.Errorf("%w: search: %v", apperr.ErrStorage, err)
			}
			return hits, nil
		})
}
