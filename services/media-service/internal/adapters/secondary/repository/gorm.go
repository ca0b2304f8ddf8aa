package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/domain"
)

// mediaModel est le schéma stocké ; le domaine reste sans tags gorm.
type mediaModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	PublicID     string `gorm:"not null"`
	ResourceType string
	OriginalName string `gorm:"not null"`
	MimeType     string `gorm:"not null"`
	URL          string `gorm:"not null"`
	UserID       string `gorm:"not null;index"`
	CreatedAt    time.Time
}

func (mediaModel) TableName() string { return "media" }

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// Migrate crée ou met à jour la table.
func (r *GormRepo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&mediaModel{})
}

func (r *GormRepo) Save(ctx context.Context, asset *domain.MediaAsset) error {
	m := toModel(asset)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *GormRepo) FindByIDs(ctx context.Context, ids []string) ([]domain.MediaAsset, error) {
	if len(ids) == 0 {
		return []domain.MediaAsset{}, nil
	}
	var models []mediaModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	return toDomain(models), nil
}

func (r *GormRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&mediaModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepo) List(ctx context.Context) ([]domain.MediaAsset, error) {
	var models []mediaModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toDomain(models), nil
}

func toModel(a *domain.MediaAsset) mediaModel {
	return mediaModel{
		ID:           a.ID,
		PublicID:     a.PublicID,
		ResourceType: a.ResourceType,
		OriginalName: a.OriginalName,
		MimeType:     a.MimeType,
		URL:          a.URL,
		UserID:       a.UserID,
		CreatedAt:    a.CreatedAt,
	}
}

func toDomain(models []mediaModel) []domain.MediaAsset {
	out := make([]domain.MediaAsset, len(models))
	for i, m := range models {
		out[i] = domain.MediaAsset{
			ID:           m.ID,
			PublicID:     m.PublicID,
			ResourceType: m.ResourceType,
			OriginalName: m.OriginalName,
			MimeType:     m.MimeType,
			URL:          m.URL,
			UserID:       m.UserID,
			CreatedAt:    m.CreatedAt,
		}
	}
	return out
}
