package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jupiterclapton/cenackle/services/media-service/internal/core/domain"
)

func newRepo(t *testing.T) *GormRepo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Une seule connexion : chaque connexion ":memory:" a sa propre base
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewGormRepo(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func asset(id, user string, created time.Time) *domain.MediaAsset {
	return &domain.MediaAsset{
		ID:           id,
		PublicID:     "pub-" + id,
		ResourceType: "image",
		OriginalName: id + ".png",
		MimeType:     "image/png",
		URL:          "https://cdn.example/" + id,
		UserID:       user,
		CreatedAt:    created,
	}
}

func TestGormRepo_SaveFindDelete(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Save(ctx, asset("m1", "u1", now)))
	require.NoError(t, repo.Save(ctx, asset("m2", "u1", now.Add(time.Second))))

	found, err := repo.FindByIDs(ctx, []string{"m1", "ghost", "m2"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	deleted, err := repo.DeleteByID(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteByID(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, deleted)

	found, err = repo.FindByIDs(ctx, []string{"m1"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestGormRepo_ListNewestFirst(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Save(ctx, asset("old", "u1", now.Add(-time.Hour))))
	require.NoError(t, repo.Save(ctx, asset("new", "u2", now)))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "pub-new", all[0].PublicID)
	assert.Equal(t, "u2", all[0].UserID)
}

func TestGormRepo_FindByIDsEmpty(t *testing.T) {
	repo := newRepo(t)
	found, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}
