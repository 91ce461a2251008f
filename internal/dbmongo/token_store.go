package dbmongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PushTokenRecord is one device/browser registration for a user. A user
// holds a set of these; registration appends, eviction removes by token.
type PushTokenRecord struct {
	UserID    string    `bson:"userId"`
	Token     string    `bson:"token"`
	Platform  string    `bson:"platform,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type TokenStore struct {
	coll *mongo.Collection
}

func NewTokenStore(mongoClient *MongoClient) *TokenStore {
	return &TokenStore{
		coll: mongoClient.Database.Collection("push_tokens"),
	}
}

// AddToken upserts the (user, token) pair. The upsert gives set-union
// semantics: re-registering the same token only bumps updatedAt, and a
// missing user record is created rather than failing.
func (s *TokenStore) AddToken(ctx context.Context, userID, token, platform string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"platform":  platform,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"userId":    userID,
			"token":     token,
			"createdAt": now,
		},
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "token": token},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to register push token: %w", wrapStoreError(err))
	}
	return nil
}

func (s *TokenStore) TokensByUser(ctx context.Context, userID string) ([]string, error) {
	cur, err := s.coll.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to load push tokens: %w", wrapStoreError(err))
	}

	var records []PushTokenRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode push tokens: %w", wrapStoreError(err))
	}

	tokens := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Token != "" {
			tokens = append(tokens, rec.Token)
		}
	}
	return tokens, nil
}

// RemoveToken drops every registration of token, across all users. Used by
// the delivery-failure eviction hook; a token the transport rejects is
// dead for whichever user holds it.
func (s *TokenStore) RemoveToken(ctx context.Context, token string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"token": token})
	if err != nil {
		return fmt.Errorf("failed to remove push token: %w", wrapStoreError(err))
	}
	return nil
}
