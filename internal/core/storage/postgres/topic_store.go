package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
)

type topicStore struct {
	db *sql.DB
}

func (s *topicStore) Get(ctx context.Context, name string) (*types.Topic, error) {
	var t types.Topic
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, claim_count, created_at, updated_at
		FROM message_topic WHERE name = $1
	`, name).Scan(&t.ID, &t.Name, &t.ClaimCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrTopicNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *topicStore) Create(ctx context.Context, topic *types.Topic) error {
	if topic.ID == "" {
		topic.ID = types.TopicID(topic.Name)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_topic (id, name, claim_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, topic.ID, topic.Name, topic.ClaimCount, topic.CreatedAt, topic.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return types.ErrTopicExists
		}
		return err
	}
	return nil
}

func (s *topicStore) Increment(ctx context.Context, name string, at time.Time) error {
	return s.update(ctx, `
		UPDATE message_topic SET claim_count = claim_count + 1, updated_at = $2
		WHERE name = $1
	`, name, at)
}

func (s *topicStore) Decrement(ctx context.Context, name string, at time.Time) error {
	return s.update(ctx, `
		UPDATE message_topic SET claim_count = GREATEST(claim_count - 1, 0), updated_at = $2
		WHERE name = $1
	`, name, at)
}

func (s *topicStore) update(ctx context.Context, query, name string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, query, name, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrTopicNotFound
	}
	return nil
}

func (s *topicStore) ResetClaimCounts(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE message_topic SET claim_count = 0`)
	return err
}

func (s *topicStore) List(ctx context.Context) ([]*types.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, claim_count, created_at, updated_at
		FROM message_topic ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []*types.Topic
	for rows.Next() {
		var t types.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.ClaimCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		topics = append(topics, &t)
	}
	return topics, rows.Err()
}
