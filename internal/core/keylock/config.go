package keylock

import (
	"errors"
	"os"
	"time"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and configures the lock backend.
type Config struct {
	Backend       string        `yaml:"backend"` // memory, redis
	KeyPrefix     string        `yaml:"key_prefix"`
	TTL           time.Duration `yaml:"ttl"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Redis         RedisConfig   `yaml:"redis"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DefaultConfig returns the default lock configuration.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendMemory,
		KeyPrefix:     "topicrouter:lock:",
		TTL:           DefaultLockTTL,
		RetryInterval: DefaultRetryInterval,
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaults.KeyPrefix
	}
	if c.TTL == 0 {
		c.TTL = defaults.TTL
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = defaults.RetryInterval
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaults.Redis.Addr
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("TOPICROUTER_LOCK_BACKEND"); val != "" {
		c.Backend = val
	}
	if val := os.Getenv("TOPICROUTER_REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
}

// ResolvePaths is a no-op: the lock config has no paths.
func (c *Config) ResolvePaths(_, _ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("lock.redis.addr is required for the redis backend")
		}
	default:
		return errors.New("lock.backend must be 'memory' or 'redis'")
	}
	if c.TTL < 0 {
		return errors.New("lock.ttl must be non-negative")
	}
	if c.RetryInterval < 0 {
		return errors.New("lock.retry_interval must be non-negative")
	}
	return nil
}
