package config

import (
	"fmt"
	"os"
	"time"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Config selects the record store backend.
type Config struct {
	Backend  string         `yaml:"backend"` // memory, mongo, postgres
	Mongo    MongoConfig    `yaml:"mongo"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type MongoConfig struct {
	URI          string `yaml:"uri"`
	DatabaseName string `yaml:"database_name"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Mongo: MongoConfig{
			URI:          "mongodb://localhost:27017",
			DatabaseName: "topicrouter",
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
	}
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for the mongo backend")
		}
		if c.Mongo.DatabaseName == "" {
			return fmt.Errorf("storage.mongo.database_name is required for the mongo backend")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %q", c.Backend)
	}
	return nil
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = defaults.Mongo.URI
	}
	if c.Mongo.DatabaseName == "" {
		c.Mongo.DatabaseName = defaults.Mongo.DatabaseName
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = defaults.Postgres.MaxOpenConns
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = defaults.Postgres.MaxIdleConns
	}
	if c.Postgres.ConnMaxLifetime == 0 {
		c.Postgres.ConnMaxLifetime = defaults.Postgres.ConnMaxLifetime
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("TOPICROUTER_STORAGE_BACKEND"); val != "" {
		c.Backend = val
	}
	if val := os.Getenv("TOPICROUTER_MONGO_URI"); val != "" {
		c.Mongo.URI = val
	}
	if val := os.Getenv("TOPICROUTER_MONGO_DB"); val != "" {
		c.Mongo.DatabaseName = val
	}
	if val := os.Getenv("TOPICROUTER_POSTGRES_DSN"); val != "" {
		c.Postgres.DSN = val
	}
}

// ResolvePaths resolves relative paths using the given base directories.
// No paths to resolve in storage config.
func (c *Config) ResolvePaths(_, _ string) { _ = c }
