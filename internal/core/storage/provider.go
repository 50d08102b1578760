// Package storage opens the record store backend selected by configuration.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/syntrixbase/topicrouter/internal/core/storage/config"
	"github.com/syntrixbase/topicrouter/internal/core/storage/memory"
	"github.com/syntrixbase/topicrouter/internal/core/storage/mongo"
	"github.com/syntrixbase/topicrouter/internal/core/storage/postgres"
	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
)

// Dependency injection for testing
var newMongoProvider = func(ctx context.Context, uri, dbName string) (types.Provider, error) {
	return mongo.NewProvider(ctx, uri, dbName)
}

// Dependency injection for postgres
var newPostgresDB = func(cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

var ensurePostgresSchema = postgres.EnsureSchema

// NewProvider opens the backend named by cfg.Backend.
func NewProvider(ctx context.Context, cfg config.Config) (types.Provider, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return memory.NewProvider(), nil
	case config.BackendMongo:
		p, err := newMongoProvider(ctx, cfg.Mongo.URI, cfg.Mongo.DatabaseName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo backend: %w", err)
		}
		return p, nil
	case config.BackendPostgres:
		db, err := newPostgresDB(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := ensurePostgresSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create postgres schema: %w", err)
		}
		return postgres.NewProvider(db), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Backend)
	}
}
