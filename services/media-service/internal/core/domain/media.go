package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
)

// MaxUploadSize : 5 Mio par fichier.
const MaxUploadSize = 5 << 20

var (
	ErrNoFile        = fmt.Errorf("%w: no file found, please add a file and try again", apperr.ErrValidation)
	ErrFileTooLarge  = fmt.Errorf("%w: file exceeds 5 MiB", apperr.ErrValidation)
	ErrMissingOwner  = fmt.Errorf("%w: owner is required", apperr.ErrValidation)
	ErrMediaNotFound = fmt.Errorf("media %w", apperr.ErrNotFound)
)

// MediaAsset référence un fichier stocké chez le fournisseur de blobs.
// Il n'est supprimé (blob puis enregistrement) qu'en réaction à PostDeleted.
type MediaAsset struct {
	ID           string
	PublicID     string // clé du blob
	ResourceType string // image, video, raw
	OriginalName string
	MimeType     string
	URL          string
	UserID       string
	CreatedAt    time.Time
}

func NewMediaAsset(userID, originalName, mimeType string, stored StoredBlob) (*MediaAsset, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingOwner
	}
	return &MediaAsset{
		ID:           uuid.NewString(),
		PublicID:     stored.PublicID,
		ResourceType: stored.ResourceType,
		OriginalName: originalName,
		MimeType:     mimeType,
		URL:          stored.URL,
		UserID:       userID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// StoredBlob est ce que renvoie le stockage après un upload.
type StoredBlob struct {
	PublicID     string
	ResourceType string
	URL          string
}

// BlobOutcome : résultat d'une suppression de blob. Absent compte comme un succès.
type BlobOutcome int

const (
	BlobDeleted BlobOutcome = iota
	BlobAbsent
)

func (o BlobOutcome) String() string {
	if o == BlobAbsent {
		return "absent"
	}
	return "deleted"
}

// Upload est un fichier reçu du client.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Content  []byte
}

func (u Upload) Validate() error {
	if u.Size == 0 || len(u.Content) == 0 {
		return ErrNoFile
	}
	if u.Size > MaxUploadSize || len(u.Content) > MaxUploadSize {
		return ErrFileTooLarge
	}
	return nil
}
