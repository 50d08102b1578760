// Package postgres implements the record stores on PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
)

// Provider implements types.Provider over a *sql.DB.
type Provider struct {
	db     *sql.DB
	topics *topicStore
	subs   *subscriptionStore
}

var _ types.Provider = (*Provider)(nil)

// NewProvider wraps db. The schema is not created; call EnsureSchema first.
func NewProvider(db *sql.DB) *Provider {
	return &Provider{
		db:     db,
		topics: &topicStore{db: db},
		subs:   &subscriptionStore{db: db},
	}
}

// EnsureSchema creates the topic and subscription tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS message_topic (
    id           VARCHAR(32) PRIMARY KEY,
    name         TEXT NOT NULL,
    claim_count  BIGINT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT chk_message_topic_claim_count CHECK (claim_count >= 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_message_topic_name ON message_topic(name);

CREATE TABLE IF NOT EXISTS message_topic_subscribe (
    id           VARCHAR(32) PRIMARY KEY,
    seq          BIGSERIAL,
    platform     TEXT NOT NULL,
    self_id      TEXT NOT NULL DEFAULT '',
    channel_id   TEXT NOT NULL,
    binding_key  TEXT NOT NULL,
    enabled      BOOLEAN NOT NULL DEFAULT TRUE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_message_topic_subscribe_key
    ON message_topic_subscribe(platform, channel_id, binding_key);
CREATE INDEX IF NOT EXISTS idx_message_topic_subscribe_enabled
    ON message_topic_subscribe(enabled, seq) WHERE enabled = true;
`
	_, err := db.Exec(schema)
	return err
}

func (p *Provider) Topics() types.TopicStore { return p.topics }

func (p *Provider) Subscriptions() types.SubscriptionStore { return p.subs }

// Close closes the database handle.
func (p *Provider) Close(_ context.Context) error {
	return p.db.Close()
}

// isUniqueViolation reports whether err is PostgreSQL error 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
