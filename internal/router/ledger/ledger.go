// Package ledger counts, per topic, how many live producers claim it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/topicrouter/internal/core/keylock"
	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
)

// LockKey names the critical section shared by every claim and abandon.
// One key for all topics: claims on different topics serialize too.
const LockKey = "topicrouter.ledger.claim_count"

// Ledger tracks topic claim counts in a TopicStore.
type Ledger struct {
	topics types.TopicStore
	locker keylock.Locker
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Ledger.
func New(topics types.TopicStore, locker keylock.Locker, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		topics: topics,
		locker: locker,
		logger: logger.With("component", "ledger"),
		now:    time.Now,
	}
}

// Claim records one more producer for topic, creating the row on first claim.
func (l *Ledger) Claim(ctx context.Context, topic string) error {
	return keylock.WithLock(ctx, l.locker, LockKey, func(ctx context.Context) error {
		now := l.now()
		_, err := l.topics.Get(ctx, topic)
		if errors.Is(err, types.ErrTopicNotFound) {
			err = l.topics.Create(ctx, &types.Topic{
				Name:       topic,
				ClaimCount: 1,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			if err != nil {
				return fmt.Errorf("create topic %q: %w", topic, err)
			}
			l.logger.Debug("Topic created", "topic", topic)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get topic %q: %w", topic, err)
		}
		if err := l.topics.Increment(ctx, topic, now); err != nil {
			return fmt.Errorf("claim topic %q: %w", topic, err)
		}
		return nil
	})
}

// Abandon records one producer fewer for topic. Unknown topics are ignored
// and the count never goes below zero.
func (l *Ledger) Abandon(ctx context.Context, topic string) error {
	return keylock.WithLock(ctx, l.locker, LockKey, func(ctx context.Context) error {
		err := l.topics.Decrement(ctx, topic, l.now())
		if errors.Is(err, types.ErrTopicNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("abandon topic %q: %w", topic, err)
		}
		return nil
	})
}

// ResetAllToZero sets every claim count to zero. Run once at startup to
// drop counts left over from a previous process.
func (l *Ledger) ResetAllToZero(ctx context.Context) error {
	return keylock.WithLock(ctx, l.locker, LockKey, func(ctx context.Context) error {
		if err := l.topics.ResetClaimCounts(ctx); err != nil {
			return fmt.Errorf("reset claim counts: %w", err)
		}
		l.logger.Info("Topic claim counts reset")
		return nil
	})
}

// Count returns the claim count of topic, zero if it was never claimed.
func (l *Ledger) Count(ctx context.Context, topic string) (int64, error) {
	t, err := l.topics.Get(ctx, topic)
	if errors.Is(err, types.ErrTopicNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return t.ClaimCount, nil
}

// List returns every known topic.
func (l *Ledger) List(ctx context.Context) ([]*types.Topic, error) {
	return l.topics.List(ctx)
}
