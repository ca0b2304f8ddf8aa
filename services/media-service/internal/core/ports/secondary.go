package ports

import (
	"context"
	"io"

	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/domain"
)

type MediaRepository interface {
	Save(ctx context.Context, asset *domain.MediaAsset) error
	// FindByIDs ignore les identifiants inconnus.
	FindByIDs(ctx context.Context, ids []string) ([]domain.MediaAsset, error)
	// DeleteByID renvoie false si l'enregistrement n'existait plus.
	DeleteByID(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]domain.MediaAsset, error)
}

type BlobStorage interface {
	Upload(ctx context.Context, name string, content io.Reader) (domain.StoredBlob, error)
	// Delete renvoie BlobAbsent si le blob n'existe pas (déjà supprimé).
	Delete(ctx context.Context, publicID, resourceType string) (domain.BlobOutcome, error)
}
