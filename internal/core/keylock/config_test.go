package keylock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	t.Setenv("TOPICROUTER_LOCK_BACKEND", "redis")
	t.Setenv("TOPICROUTER_REDIS_ADDR", "redis:6380")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Backend = BackendRedis
	assert.NoError(t, cfg.Validate())

	cfg.Redis.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Backend = "etcd"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.TTL = -time.Second
	assert.Error(t, cfg.Validate())
}
