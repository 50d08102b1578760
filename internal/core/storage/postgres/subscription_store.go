package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
)

const subscriptionColumns = `id, platform, self_id, channel_id, binding_key, enabled, created_at, updated_at`

type subscriptionStore struct {
	db *sql.DB
}

func (s *subscriptionStore) FindByKey(ctx context.Context, platform, channelID, bindingKey string) (*types.Subscription, error) {
	var sub types.Subscription
	err := s.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM message_topic_subscribe
		WHERE platform = $1 AND channel_id = $2 AND binding_key = $3
	`, platform, channelID, bindingKey).Scan(
		&sub.ID, &sub.Platform, &sub.SelfID, &sub.ChannelID, &sub.BindingKey,
		&sub.Enabled, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_topic_subscribe (
			id, platform, self_id, channel_id, binding_key, enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		sub.ID, sub.Platform, sub.SelfID, sub.ChannelID, sub.BindingKey,
		sub.Enabled, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.ErrSubscriptionExists
		}
		return err
	}
	return nil
}

func (s *subscriptionStore) UpdateState(ctx context.Context, id string, selfID string, enabled bool, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE message_topic_subscribe SET self_id = $2, enabled = $3, updated_at = $4
		WHERE id = $1
	`, id, selfID, enabled, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrSubscriptionNotFound
	}
	return nil
}

func (s *subscriptionStore) ListEnabled(ctx context.Context) ([]*types.Subscription, error) {
	return s.query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM message_topic_subscribe WHERE enabled = true ORDER BY seq
	`)
}

func (s *subscriptionStore) ListEnabledByChannel(ctx context.Context, platform, channelID string) ([]*types.Subscription, error) {
	return s.query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM message_topic_subscribe
		WHERE enabled = true AND platform = $1 AND channel_id = $2 ORDER BY seq
	`, platform, channelID)
}

func (s *subscriptionStore) query(ctx context.Context, query string, args ...interface{}) ([]*types.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*types.Subscription
	for rows.Next() {
		var sub types.Subscription
		if err := rows.Scan(
			&sub.ID, &sub.Platform, &sub.SelfID, &sub.ChannelID, &sub.BindingKey,
			&sub.Enabled, &sub.CreatedAt, &sub.UpdatedAt,
		); err != nil {
			return nil, err
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}
