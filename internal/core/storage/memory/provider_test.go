package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
)

func TestTopicStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewProvider().Topics()
	now := time.Now()

	_, err := s.Get(ctx, "order.created")
	assert.ErrorIs(t, err, types.ErrTopicNotFound)

	require.NoError(t, s.Create(ctx, &types.Topic{Name: "order.created", ClaimCount: 1, CreatedAt: now, UpdatedAt: now}))
	assert.ErrorIs(t, s.Create(ctx, &types.Topic{Name: "order.created"}), types.ErrTopicExists)

	later := now.Add(time.Second)
	require.NoError(t, s.Increment(ctx, "order.created", later))
	got, err := s.Get(ctx, "order.created")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ClaimCount)
	assert.Equal(t, types.TopicID("order.created"), got.ID)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, later, got.UpdatedAt)

	require.NoError(t, s.Decrement(ctx, "order.created", later))
	require.NoError(t, s.Decrement(ctx, "order.created", later))
	require.NoError(t, s.Decrement(ctx, "order.created", later))
	got, err = s.Get(ctx, "order.created")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ClaimCount)

	assert.ErrorIs(t, s.Increment(ctx, "missing", later), types.ErrTopicNotFound)
	assert.ErrorIs(t, s.Decrement(ctx, "missing", later), types.ErrTopicNotFound)
}

func TestTopicStore_ResetAndList(t *testing.T) {
	ctx := context.Background()
	s := NewProvider().Topics()

	require.NoError(t, s.Create(ctx, &types.Topic{Name: "b", ClaimCount: 3}))
	require.NoError(t, s.Create(ctx, &types.Topic{Name: "a", ClaimCount: 5}))
	require.NoError(t, s.ResetClaimCounts(ctx))

	topics, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "a", topics[0].Name)
	assert.Equal(t, "b", topics[1].Name)
	for _, topic := range topics {
		assert.Zero(t, topic.ClaimCount)
	}
}

func TestTopicStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewProvider().Topics()
	require.NoError(t, s.Create(ctx, &types.Topic{Name: "a", ClaimCount: 1}))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	got.ClaimCount = 42

	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.ClaimCount)
}

func TestSubscriptionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewProvider().Subscriptions()
	now := time.Now()

	_, err := s.FindByKey(ctx, "x", "c1", "order.#")
	assert.ErrorIs(t, err, types.ErrSubscriptionNotFound)

	sub := &types.Subscription{Platform: "x", ChannelID: "c1", BindingKey: "order.#", Enabled: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Create(ctx, sub))
	assert.Equal(t, types.SubscriptionID("x", "c1", "order.#"), sub.ID)
	assert.ErrorIs(t, s.Create(ctx, &types.Subscription{Platform: "x", ChannelID: "c1", BindingKey: "order.#"}), types.ErrSubscriptionExists)

	later := now.Add(time.Minute)
	require.NoError(t, s.UpdateState(ctx, sub.ID, "bot2", false, later))
	got, err := s.FindByKey(ctx, "x", "c1", "order.#")
	require.NoError(t, err)
	assert.Equal(t, "bot2", got.SelfID)
	assert.False(t, got.Enabled)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, later, got.UpdatedAt)

	assert.ErrorIs(t, s.UpdateState(ctx, "missing", "", true, later), types.ErrSubscriptionNotFound)
}

func TestSubscriptionStore_ListEnabled(t *testing.T) {
	ctx := context.Background()
	s := NewProvider().Subscriptions()

	require.NoError(t, s.Create(ctx, &types.Subscription{Platform: "x", ChannelID: "c2", BindingKey: "b", Enabled: true}))
	require.NoError(t, s.Create(ctx, &types.Subscription{Platform: "x", ChannelID: "c1", BindingKey: "a", Enabled: false}))
	require.NoError(t, s.Create(ctx, &types.Subscription{Platform: "x", ChannelID: "c1", BindingKey: "c", Enabled: true}))
	require.NoError(t, s.Create(ctx, &types.Subscription{Platform: "y", ChannelID: "c1", BindingKey: "d", Enabled: true}))

	all, err := s.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "c", "d"}, []string{all[0].BindingKey, all[1].BindingKey, all[2].BindingKey})

	byChannel, err := s.ListEnabledByChannel(ctx, "x", "c1")
	require.NoError(t, err)
	require.Len(t, byChannel, 1)
	assert.Equal(t, "c", byChannel[0].BindingKey)
}
