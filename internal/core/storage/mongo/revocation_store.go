package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/syntrixbase/switchboard/internal/core/identity"
)

type revokedToken struct {
	JTI       string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	RevokedAt time.Time `bson:"revoked_at"`
}

type RevocationStore struct {
	coll *mongo.Collection
}

var _ identity.RevocationStore = (*RevocationStore)(nil)

func NewRevocationStore(db *mongo.Database, collectionName string) *RevocationStore {
	if collectionName == "" {
		collectionName = "auth_revocations"
	}
	return &RevocationStore{
		coll: db.Collection(collectionName),
	}
}

func (s *RevocationStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	doc := revokedToken{
		JTI:       jti,
		ExpiresAt: expiresAt,
		RevokedAt: time.Now(),
	}
	_, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil // Already revoked
	}
	return err
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var doc revokedToken
	err := s.coll.FindOne(ctx, bson.M{"_id": jti}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsureIndexes creates the TTL index that expires revocations with their tokens.
func (s *RevocationStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}
