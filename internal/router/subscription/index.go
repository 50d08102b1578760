// Package subscription stores subscriptions and resolves the subscribers of a topic.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/syntrixbase/topicrouter/internal/core/keylock"
	"github.com/syntrixbase/topicrouter/internal/core/pattern"
	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
)

const lockKeyPrefix = "topicrouter.subscription."

// LockKey names the critical section of one (platform, channel, binding key) triple.
func LockKey(platform, channelID, bindingKey string) string {
	return lockKeyPrefix + strconv.Quote(platform) + "," + strconv.Quote(channelID) + "," + strconv.Quote(bindingKey)
}

// Index is the subscription side of the router.
type Index struct {
	subs     types.SubscriptionStore
	locker   keylock.Locker
	patterns *pattern.Cache
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Index over subs. Upserts of the same triple are
// serialized through locker.
func New(subs types.SubscriptionStore, locker keylock.Locker, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		subs:     subs,
		locker:   locker,
		patterns: pattern.NewCache(pattern.DefaultCacheSize),
		logger:   logger.With("component", "subscription-index"),
		now:      time.Now,
	}
}

// Upsert creates the subscription for the form's triple or updates its
// self id and enabled flag. Platform, channel and binding key never change.
func (i *Index) Upsert(ctx context.Context, form types.SubscriptionForm) error {
	if err := validateStruct(&form); err != nil {
		return err
	}

	key := LockKey(form.Platform, form.ChannelID, form.BindingKey)
	return keylock.WithLock(ctx, i.locker, key, func(ctx context.Context) error {
		now := i.now()
		existing, err := i.subs.FindByKey(ctx, form.Platform, form.ChannelID, form.BindingKey)
		if errors.Is(err, types.ErrSubscriptionNotFound) {
			err = i.subs.Create(ctx, &types.Subscription{
				Platform:   form.Platform,
				SelfID:     form.SelfID,
				ChannelID:  form.ChannelID,
				BindingKey: form.BindingKey,
				Enabled:    form.Enabled,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			if err != nil {
				return fmt.Errorf("create subscription: %w", err)
			}
			i.logger.Debug("Subscription created",
				"platform", form.Platform, "channel", form.ChannelID, "binding_key", form.BindingKey)
			return nil
		}
		if err != nil {
			return fmt.Errorf("find subscription: %w", err)
		}
		if err := i.subs.UpdateState(ctx, existing.ID, form.SelfID, form.Enabled, now); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		return nil
	})
}

// ByChannel returns the enabled subscriptions of one channel.
func (i *Index) ByChannel(ctx context.Context, platform, channelID string) ([]*types.Subscription, error) {
	return i.subs.ListEnabledByChannel(ctx, platform, channelID)
}

// ByTopic returns the enabled subscriptions whose binding key matches topic,
// in store order.
func (i *Index) ByTopic(ctx context.Context, topic string) ([]*types.Subscription, error) {
	all, err := i.subs.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*types.Subscription, 0, len(all))
	for _, sub := range all {
		if i.patterns.Get(sub.BindingKey).Match(topic) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}
