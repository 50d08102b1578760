package mongo

import (
	"context"
	"time"

	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultTopicCollection        = "message_topic"
	DefaultSubscriptionCollection = "message_topic_subscribe"
)

// Provider implements types.Provider on top of a MongoDB database.
type Provider struct {
	client *mongo.Client
	dbName string
	topics *topicStore
	subs   *subscriptionStore
}

var _ types.Provider = (*Provider)(nil)

// NewProvider connects to MongoDB and prepares the topic and subscription
// collections, creating their indexes if missing.
func NewProvider(ctx context.Context, uri string, dbName string) (*Provider, error) {
	clientOpts := options.Client().ApplyURI(uri)

	// Set some reasonable defaults if not provided in URI
	if clientOpts.ConnectTimeout == nil {
		timeout := 10 * time.Second
		clientOpts.SetConnectTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	p := newProvider(client, client.Database(dbName))
	p.dbName = dbName
	if err := p.EnsureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return p, nil
}

func newProvider(client *mongo.Client, db *mongo.Database) *Provider {
	return &Provider{
		client: client,
		dbName: db.Name(),
		topics: newTopicStore(db, ""),
		subs:   newSubscriptionStore(db, ""),
	}
}

// EnsureIndexes creates the unique indexes of both collections.
func (p *Provider) EnsureIndexes(ctx context.Context) error {
	if err := p.topics.EnsureIndexes(ctx); err != nil {
		return err
	}
	return p.subs.EnsureIndexes(ctx)
}

// Client returns the underlying MongoDB client
func (p *Provider) Client() *mongo.Client {
	return p.client
}

// DatabaseName returns the database name for this provider
func (p *Provider) DatabaseName() string {
	return p.dbName
}

func (p *Provider) Topics() types.TopicStore { return p.topics }

func (p *Provider) Subscriptions() types.SubscriptionStore { return p.subs }

// Close closes the MongoDB connection
func (p *Provider) Close(ctx context.Context) error {
	return p.client.Disconnect(ctx)
}
