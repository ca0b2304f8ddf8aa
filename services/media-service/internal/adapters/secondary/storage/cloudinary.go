package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/domain"
)

// Réponses de destroy côté Cloudinary
const (
	destroyOK       = "ok"
	destroyNotFound = "not found"
)

// uploadAPI est la partie de uploader.API utilisée ici.
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

type CloudinaryStorage struct {
	api    uploadAPI
	folder string
}

// NewCloudinaryStorage ouvre le client à partir des identifiants du compte.
func NewCloudinaryStorage(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &CloudinaryStorage{api: &cld.Upload, folder: folder}, nil
}

func (s *CloudinaryStorage) Upload(ctx context.Context, name string, content io.Reader) (domain.StoredBlob, error) {
	res, err := s.api.Upload(ctx, content, uploader.UploadParams{
		ResourceType: "auto",
		Folder:       s.folder,
	})
	if err != nil {
		return domain.StoredBlob{}, fmt.Errorf("upload %s: %w", name, err)
	}
	if res.Error.Message != "" {
		return domain.StoredBlob{}, fmt.Errorf("upload %s: %s", name, res.Error.Message)
	}
	return domain.StoredBlob{PublicID: res.PublicID, ResourceType: res.ResourceType, URL: res.SecureURL}, nil
}

// Delete : "not found" n'est pas une erreur, le blob est déjà parti.
func (s *CloudinaryStorage) Delete(ctx context.Context, publicID, resourceType string) (domain.BlobOutcome, error) {
	if resourceType == "" {
		resourceType = "image"
	}
	res, err := s.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: resourceType})
	if err != nil {
		return 0, fmt.Errorf("destroy %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return 0, fmt.Errorf("destroy %s: %s", publicID, res.Error.Message)
	}

	switch res.Result {
	case destroyOK:
		return domain.BlobDeleted, nil
	case destroyNotFound:
		return domain.BlobAbsent, nil
	default:
		return 0, errors.New("destroy " + publicID + ": unexpected result " + res.Result)
	}
}
