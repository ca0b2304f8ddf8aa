package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/domain"
)

// TombstoneTTL borne la durée de vie d'une pierre tombale. Elle doit dépasser la fenêtre
// de redélivrance d'un PostCreated.
const TombstoneTTL = 7 * 24 * time.Hour

// projectionDoc est le format stocké ; le domaine reste sans tags bson.
// Une pierre tombale garde son postId (index unique) et perd son contenu.
type projectionDoc struct {
	PostID    string     `bson:"postId"`
	UserID    string     `bson:"userId,omitempty"`
	Content   string     `bson:"content,omitempty"`
	CreatedAt time.Time  `bson:"createdAt"`
	IndexedAt time.Time  `bson:"indexedAt"`
	Deleted   bool       `bson:"deleted,omitempty"`
	DeletedAt *time.Time `bson:"deletedAt,omitempty"`
	Score     float64    `bson:"score,omitempty"`
}

type MongoRepo struct {
	coll *mongo.Collection
}

func NewMongoRepo(coll *mongo.Collection) *MongoRepo {
	return &MongoRepo{coll: coll}
}

// Connect ouvre le client et vérifie la connexion.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes : unicité de postId (idempotence des insertions, pierres tombales), index
// texte, expiration des pierres tombales. Les projections vivantes n'ont pas de deletedAt.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "postId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "content", Value: "text"}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "deletedAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(TombstoneTTL / time.Second))},
	})
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

func (r *MongoRepo) Insert(ctx context.Context, p domain.Projection) (bool, error) {
	_, err := r.coll.InsertOne(ctx, projectionDoc{
		PostID:    p.PostID,
		UserID:    p.UserID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		IndexedAt: p.IndexedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *MongoRepo) MarkDeleted(ctx context.Context, postID string, at time.Time) (bool, error) {
	update := bson.M{
		"$set":   bson.M{"deleted": true, "deletedAt": at},
		"$unset": bson.M{"content": "", "userId": ""},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	var before projectionDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"postId": postID}, update, opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Rien avant : pierre tombale posée pour un post jamais indexé
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !before.Deleted, nil
}

// Search trie par textScore, comme un $text classique.
func (r *MongoRepo) Search(ctx context.Context, query string, limit int) ([]domain.Hit, error) {
	score := bson.M{"$meta": "textScore"}
	opts := options.Find().
		SetProjection(bson.M{"score": score}).
		SetSort(bson.M{"score": score}).
		SetLimit(int64(limit))

	filter := bson.M{
		"$text":   bson.M{"$search": query},
		"deleted": bson.M{"$ne": true},
	}
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []projectionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	hits := make([]domain.Hit, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, domain.Hit{
			Projection: domain.Projection{
				PostID:    d.PostID,
				UserID:    d.UserID,
				Content:   d.Content,
				CreatedAt: d.CreatedAt,
				IndexedAt: d.IndexedAt,
			},
			Score: d.Score,
		})
	}
	return hits, nil
}
