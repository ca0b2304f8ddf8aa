package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/ports"
)

// RetryPolicy borne les tentatives de suppression d'UN asset.
type RetryPolicy struct {
	MaxTries       uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 3, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second}
}

type MediaService struct {
	repo    ports.MediaRepository
	storage ports.BlobStorage
	retry   RetryPolicy
	logger  *slog.Logger
}

func NewMediaService(repo ports.MediaRepository, storage ports.BlobStorage, retry RetryPolicy, logger *slog.Logger) *MediaService {
	return &MediaService{repo: repo, storage: storage, retry: retry, logger: logger}
}

func (s *MediaService) Upload(ctx context.Context, userID string, file domain.Upload) (*domain.MediaAsset, error) {
	if err := file.Validate(); err != nil {
		return nil, err
	}
	s.logger.Info("Uploading media", "user_id", userID, "name", file.Name, "mime_type", file.MimeType)

	stored, err := s.storage.Upload(ctx, file.Name, bytes.NewReader(file.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: upload %s: %v", apperr.ErrStorage, file.Name, err)
	}

	asset, err := domain.NewMediaAsset(userID, file.Name, file.MimeType, stored)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, asset); err != nil {
		// Compensation : pas de blob orphelin sans enregistrement
		if _, derr := s.storage.Delete(ctx, stored.PublicID, stored.ResourceType); derr != nil {
			s.logger.Error("Failed to remove orphan blob", "public_id", stored.PublicID, "error", derr)
		}
		return nil, fmt.Errorf("%w: save media: %v", apperr.ErrStorage, err)
	}

	s.logger.Info("✅ Media uploaded", "media_id", asset.ID, "public_id", asset.PublicID)
	return asset, nil
}

func (s *MediaService) ListMedia(ctx context.Context) ([]domain.MediaAsset, error) {
	assets, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list media: %v", apperr.ErrStorage, err)
	}
	return assets, nil
}

// CleanupPost supprime les médias d'un post supprimé. Chaque asset est retenté
// indépendamment ; ceux déjà disparus sont ignorés. S'il en reste en échec, ErrProjection
// fait redélivrer l'événement et la redélivrance ne touche que le reste.
func (s *MediaService) CleanupPost(ctx context.Context, postID, ownerID string, mediaIDs []string) error {
	if len(mediaIDs) == 0 {
		return nil
	}

	assets, err := s.repo.FindByIDs(ctx, mediaIDs)
	if err != nil {
		return fmt.Errorf("%w: load media for post %s: %v", apperr.ErrProjection, postID, err)
	}

	var failed []error
	for _, asset := range assets {
		// Un post ne peut pas emporter les médias d'un autre utilisateur
		if ownerID != "" && asset.UserID != ownerID {
			s.logger.Warn("Skipping media owned by another user", "post_id", postID, "media_id", asset.ID)
			continue
		}
		if err := s.removeAsset(ctx, asset); err != nil {
			s.logger.Error("❌ Media cleanup failed", "post_id", postID, "media_id", asset.ID, "error", err)
			failed = append(failed, fmt.Errorf("media %s: %w", asset.ID, err))
			continue
		}
		s.logger.Info("Deleted media for deleted post", "post_id", postID, "media_id", asset.ID)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: post %s: %d/%d media left: %w", apperr.ErrProjection, postID, len(failed), len(assets), errors.Join(failed...))
	}
	s.logger.Info("Processed deletion of media", "post_id", postID, "count", len(assets))
	return nil
}

// removeAsset : blob puis enregistrement, l'ensemble retenté avec backoff.
// Les deux étapes tolèrent l'absence, on peut donc rejouer depuis le début.
func (s *MediaService) removeAsset(ctx context.Context, asset domain.MediaAsset) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retry.InitialBackoff
	eb.MaxInterval = s.retry.MaxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		outcome, err := s.storage.Delete(ctx, asset.PublicID, asset.ResourceType)
		if err != nil {
			return struct{}{}, fmt.Errorf("delete blob %s: %w", asset.PublicID, err)
		}
		if outcome == domain.BlobAbsent {
			s.logger.Debug("Blob already gone", "public_id", asset.PublicID)
		}
		if _, err := s.repo.DeleteByID(ctx, asset.ID); err != nil {
			return struct{}{}, fmt.Errorf("delete record: %w", err)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(s.retry.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("Media cleanup failed, retrying", "media_id", asset.ID, "error", err, "retry_in", next)
		}),
	)
	return err
}
