package types

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/zeebo/blake3"
)

var (
	ErrTopicNotFound        = errors.New("topic not found")
	ErrTopicExists          = errors.New("topic already exists")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionExists   = errors.New("subscription already exists")
)

// Topic is a topic row. ClaimCount is the number of live producers that
// currently claim the topic; rows are never deleted when it drops to zero.
type Topic struct {
	ID         string    `json:"id" bson:"_id"`
	Name       string    `json:"name" bson:"name"`
	ClaimCount int64     `json:"claimCount" bson:"claim_count"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updated_at"`
}

// Subscription binds a channel on a platform to a binding key.
// (Platform, ChannelID, BindingKey) identifies a row.
type Subscription struct {
	ID         string    `json:"id" bson:"_id"`
	Platform   string    `json:"platform" bson:"platform"`
	SelfID     string    `json:"selfId" bson:"self_id"`
	ChannelID  string    `json:"channelId" bson:"channel_id"`
	BindingKey string    `json:"bindingKey" bson:"binding_key"`
	Enabled    bool      `json:"enabled" bson:"enabled"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updated_at"`
}

// SubscriptionForm is the input of a subscribe call.
type SubscriptionForm struct {
	Platform   string `json:"platform" yaml:"platform" validate:"required,max=255"`
	SelfID     string `json:"selfId,omitempty" yaml:"self_id" validate:"max=255"`
	ChannelID  string `json:"channelId" yaml:"channel_id" validate:"required,max=255"`
	BindingKey string `json:"bindingKey" yaml:"binding_key" validate:"max=1024"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
}

// TopicStore persists topic rows.
type TopicStore interface {
	// Get returns the topic named name or ErrTopicNotFound.
	Get(ctx context.Context, name string) (*Topic, error)

	// Create inserts a new topic. Fails with ErrTopicExists on duplicates.
	Create(ctx context.Context, topic *Topic) error

	// Increment adds one to the claim count of an existing topic.
	Increment(ctx context.Context, name string, at time.Time) error

	// Decrement subtracts one from the claim count, never going below zero.
	Decrement(ctx context.Context, name string, at time.Time) error

	// ResetClaimCounts sets the claim count of every topic to zero.
	ResetClaimCounts(ctx context.Context) error

	// List returns every topic row.
	List(ctx context.Context) ([]*Topic, error)
}

// SubscriptionStore persists subscription rows.
type SubscriptionStore interface {
	// FindByKey returns the subscription for the triple or ErrSubscriptionNotFound.
	FindByKey(ctx context.Context, platform, channelID, bindingKey string) (*Subscription, error)

	// Create inserts a new subscription. Fails with ErrSubscriptionExists on duplicates.
	Create(ctx context.Context, sub *Subscription) error

	// UpdateState updates the mutable fields of a subscription.
	UpdateState(ctx context.Context, id string, selfID string, enabled bool, at time.Time) error

	// ListEnabled returns every enabled subscription in insertion order.
	ListEnabled(ctx context.Context) ([]*Subscription, error)

	// ListEnabledByChannel returns the enabled subscriptions of one channel.
	ListEnabledByChannel(ctx context.Context, platform, channelID string) ([]*Subscription, error)
}

// Provider gives access to the stores of one backend.
type Provider interface {
	Topics() TopicStore
	Subscriptions() SubscriptionStore
	Close(ctx context.Context) error
}

// TopicID derives the row id of a topic from its name.
func TopicID(name string) string {
	return hashID(name)
}

// SubscriptionID derives the row id of a subscription from its identifying triple.
func SubscriptionID(platform, channelID, bindingKey string) string {
	return hashID(platform, channelID, bindingKey)
}

func hashID(parts ...string) string {
	h := blake3.New()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
