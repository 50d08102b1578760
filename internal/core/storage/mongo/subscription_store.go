package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type subscriptionStore struct {
	coll *mongo.Collection
}

// newSubscriptionStore returns a subscription store backed by the given collection.
func newSubscriptionStore(db *mongo.Database, collectionName string) *subscriptionStore {
	if collectionName == "" {
		collectionName = DefaultSubscriptionCollection
	}
	return &subscriptionStore{
		coll: db.Collection(collectionName),
	}
}

func (s *subscriptionStore) FindByKey(ctx context.Context, platform, channelID, bindingKey string) (*types.Subscription, error) {
	filter := bson.M{"platform": platform, "channel_id": channelID, "binding_key": bindingKey}
	var sub types.Subscription
	if err := s.coll.FindOne(ctx, filter).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, types.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *subscriptionStore) Create(ctx context.Context, sub *types.Subscription) error {
	if sub.ID == "" {
		sub.ID = types.SubscriptionID(sub.Platform, sub.ChannelID, sub.BindingKey)
	}
	_, err := s.coll.InsertOne(ctx, sub)
	if mongo.IsDuplicateKeyError(err) {
		return types.ErrSubscriptionExists
	}
	return err
}

func (s *subscriptionStore) UpdateState(ctx context.Context, id string, selfID string, enabled bool, at time.Time) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"self_id":    selfID,
		"enabled":    enabled,
		"updated_at": at,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return types.ErrSubscriptionNotFound
	}
	return nil
}

func (s *subscriptionStore) ListEnabled(ctx context.Context) ([]*types.Subscription, error) {
	return s.find(ctx, bson.M{"enabled": true})
}

func (s *subscriptionStore) ListEnabledByChannel(ctx context.Context, platform, channelID string) ([]*types.Subscription, error) {
	return s.find(ctx, bson.M{"enabled": true, "platform": platform, "channel_id": channelID})
}

func (s *subscriptionStore) find(ctx context.Context, filter bson.M) ([]*types.Subscription, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subs []*types.Subscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *subscriptionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "platform", Value: 1},
				{Key: "channel_id", Value: 1},
				{Key: "binding_key", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "enabled", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	return err
}
