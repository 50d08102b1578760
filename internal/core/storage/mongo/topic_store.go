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

type topicStore struct {
	coll *mongo.Collection
}

// newTopicStore returns a topic store backed by the given collection.
func newTopicStore(db *mongo.Database, collectionName string) *topicStore {
	if collectionName == "" {
		collectionName = DefaultTopicCollection
	}
	return &topicStore{
		coll: db.Collection(collectionName),
	}
}

func (s *topicStore) Get(ctx context.Context, name string) (*types.Topic, error) {
	var topic types.Topic
	err := s.coll.FindOne(ctx, bson.M{"name": name}).Decode(&topic)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, types.ErrTopicNotFound
		}
		return nil, err
	}
	return &topic, nil
}

func (s *topicStore) Create(ctx context.Context, topic *types.Topic) error {
	if topic.ID == "" {
		topic.ID = types.TopicID(topic.Name)
	}
	_, err := s.coll.InsertOne(ctx, topic)
	if mongo.IsDuplicateKeyError(err) {
		return types.ErrTopicExists
	}
	return err
}

func (s *topicStore) Increment(ctx context.Context, name string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"name": name}, bson.M{
		"$inc": bson.M{"claim_count": 1},
		"$set": bson.M{"updated_at": at},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return types.ErrTopicNotFound
	}
	return nil
}

func (s *topicStore) Decrement(ctx context.Context, name string, at time.Time) error {
	// Pipeline update so the clamp happens server side.
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "claim_count", Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$add", Value: bson.A{"$claim_count", -1}}},
			}}}},
			{Key: "updated_at", Value: at},
		}}},
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"name": name}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return types.ErrTopicNotFound
	}
	return nil
}

func (s *topicStore) ResetClaimCounts(ctx context.Context) error {
	_, err := s.coll.UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{"claim_count": 0}})
	return err
}

func (s *topicStore) List(ctx context.Context) ([]*types.Topic, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var topics []*types.Topic
	if err := cursor.All(ctx, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func (s *topicStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
