package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/domain"
)

func TestMongoRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		inserted, err := NewMongoRepo(mt.Coll).Insert(context.Background(), domain.Projection{PostID: "p1", Content: "hello"})
		require.NoError(mt, err)
		assert.True(mt, inserted)
	})

	mt.Run("duplicate insert is a no-op", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: search.posts index: postId_1",
		}))
		inserted, err := NewMongoRepo(mt.Coll).Insert(context.Background(), domain.Projection{PostID: "p1"})
		require.NoError(mt, err)
		assert.False(mt, inserted)
	})

	at := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

	mt.Run("mark deleted removes a live projection", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{{Key: "postId", Value: "p1"}, {Key: "content", Value: "hello"}}},
		})
		deleted, err := NewMongoRepo(mt.Coll).MarkDeleted(context.Background(), "p1", at)
		require.NoError(mt, err)
		assert.True(mt, deleted)
	})

	mt.Run("mark deleted twice", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{{Key: "postId", Value: "p1"}, {Key: "deleted", Value: true}, {Key: "deletedAt", Value: at}}},
		})
		deleted, err := NewMongoRepo(mt.Coll).MarkDeleted(context.Background(), "p1", at)
		require.NoError(mt, err)
		assert.False(mt, deleted)
	})

	mt.Run("mark deleted before create leaves a tombstone", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})
		deleted, err := NewMongoRepo(mt.Coll).MarkDeleted(context.Background(), "p1", at)
		require.NoError(mt, err)
		assert.False(mt, deleted)

		// Le PostCreated arrivé ensuite bute sur l'index unique
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: search.posts index: postId_1",
		}))
		inserted, err := NewMongoRepo(mt.Coll).Insert(context.Background(), domain.Projection{PostID: "p1", Content: "hello"})
		require.NoError(mt, err)
		assert.False(mt, inserted)
	})

	mt.Run("search", func(mt *mtest.T) {
		created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "postId", Value: "p1"},
				{Key: "userId", Value: "u1"},
				{Key: "content", Value: "golang rocks"},
				{Key: "createdAt", Value: created},
				{Key: "score", Value: 1.5},
			},
		))

		hits, err := NewMongoRepo(mt.Coll).Search(context.Background(), "golang", 10)
		require.NoError(mt, err)
		require.Len(mt, hits, 1)
		assert.Equal(mt, "p1", hits[0].PostID)
		assert.Equal(mt, 1.5, hits[0].Score)
		assert.True(mt, created.Equal(hits[0].CreatedAt))
	})
}
