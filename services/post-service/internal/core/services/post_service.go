package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jupiterclapton/cenackle/pkg/cache"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/post-service/internal/core/ports"
)

// Espaces de clés du cache
const (
	listNamespace = "posts"
	itemNamespace = "post"
)

type Config struct {
	Content      domain.ContentPolicy
	ListTTL      time.Duration
	ItemTTL      time.Duration
	DefaultLimit int
	MaxLimit     int
}

func DefaultConfig() Config {
	return Config{
		Content:      domain.DefaultContentPolicy(),
		ListTTL:      300 * time.Second,
		ItemTTL:      time.Hour,
		DefaultLimit: 10,
		MaxLimit:     100,
	}
}

type service struct {
	repo      ports.PostRepository
	cache     *cache.Invalidator
	publisher ports.EventPublisher
	cfg       Config
	logger    *slog.Logger
}

func NewPostService(repo ports.PostRepository, c *cache.Invalidator, pub ports.EventPublisher, cfg Config, logger *slog.Logger) ports.PostService {
	return &service{repo: repo, cache: c, publisher: pub, cfg: cfg, logger: logger}
}

func (s *service) CreatePost(ctx context.Context, authorID, content string, mediaIDs []string) (*domain.Post, error) {
	post, err := domain.NewPost(authorID, content, mediaIDs, s.cfg.Content)
	if err != nil {
		return nil, err
	}

	// 1. Sauvegarde DB (Source of Truth)
	if err := s.repo.Insert(ctx, post); err != nil {
		s.logger.Error("failed to persist post", "post_id", post.ID, "error", err)
		return nil, err
	}

	// 2. Invalidation synchrone : aucune liste en cache ne doit survivre à l'écriture
	invErr := s.cache.InvalidateNamespace(ctx, cache.Prefix(listNamespace))

	// 3. Publication, uniquement après persistance. La donnée est sauvée : un échec est journalisé.
	if err := s.publisher.PublishPostCreated(ctx, post); err != nil {
		s.logger.Error("failed to publish event", "post_id", post.ID, "event_type", "PostCreated", "error", err)
	}

	// Le post existe et l'événement est parti ; l'échec d'invalidation remonte quand même
	// (ErrStorage). Un nouvel essai du client crée un second post.
	if invErr != nil {
		return nil, invErr
	}
	s.logger.Info("post created", "post_id", post.ID, "user_id", authorID)
	return post, nil
}

// GetPost lit post:{id} en read-through. Un chargement commencé avant un DeletePost peut
// réécrire l'entrée après l'invalidation : le post supprimé reste alors servi au plus
// ItemTTL. Pas de verrou ni de version, le TTL borne cette fenêtre.
func (s *service) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	// Un id qui n'est pas un UUID ne peut désigner aucun post
	if uuid.Validate(postID) != nil {
		return nil, domain.ErrPostNotFound
	}
	return cache.ReadThrough(ctx, s.cache, cache.Key(itemNamespace, postID), s.cfg.ItemTTL,
		func(ctx context.Context) (*domain.Post, error) {
			return s.repo.FindByID(ctx, postID)
		})
}

func (s *service) DeletePost(ctx context.Context, postID, requesterID string) error {
	if uuid.Validate(postID) != nil {
		return domain.ErrPostNotFound
	}
	// "Pas à toi" et "n'existe pas" sont indiscernables pour l'appelant
	post, err := s.repo.FindByOwnerAndID(ctx, requesterID, postID)
	if err != nil {
		return err
	}

	deleted, err := s.repo.DeleteByID(ctx, postID)
	if err != nil {
		s.logger.Error("failed to delete post", "post_id", postID, "error", err)
		return err
	}
	if !deleted {
		// Suppression concurrente : l'autre requête publie l'événement
		return domain.ErrPostNotFound
	}

	invErr := errors.Join(
		s.cache.InvalidateNamespace(ctx, cache.Key(itemNamespace, postID)),
		s.cache.InvalidateNamespace(ctx, cache.Prefix(listNamespace)),
	)

	if err := s.publisher.PublishPostDeleted(ctx, post); err != nil {
		s.logger.Error("failed to publish event", "post_id", postID, "event_type", "PostDeleted", "error", err)
	}

	if invErr != nil {
		return invErr
	}
	s.logger.Info("post deleted", "post_id", postID, "user_id", requesterID)
	return nil
}

func (s *service) ListPosts(ctx context.Context, page, limit int) (domain.Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	return cache.ReadThrough(ctx, s.cache, cache.Key(listNamespace, page, limit), s.cfg.ListTTL,
		func(ctx context.Context) (domain.Page, error) {
			posts, total, err := s.repo.ListPage(ctx, (page-1)*limit, limit)
			if err != nil {
				return domain.Page{}, err
			}
			return domain.NewPage(posts, page, limit, total), nil
		})
}

// ListPostsByAuthor : pagination keyset sur created_at, le curseur est une date RFC3339Nano.
func (s *service) ListPostsByAuthor(ctx context.Context, authorID string, limit int, cursor string) ([]*domain.Post, string, error) {
	if limit < 1 || limit > s.cfg.MaxLimit {
		limit = s.cfg.DefaultLimit
	}

	var cursorTime time.Time
	if cursor != "" {
		t, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return nil, "", domain.ErrInvalidPageToken
		}
		cursorTime = t
	}

	posts, err := s.repo.ListByAuthor(ctx, authorID, limit, cursorTime)
	if err != nil {
		return nil, "", err
	}

	// Page pleine => il peut en rester : le curseur est la date du DERNIER post
	next := ""
	if len(posts) == limit {
		next = posts[len(posts)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	return posts, next, nil
}
