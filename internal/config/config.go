package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/syntrixbase/topicrouter/internal/core/keylock"
	storage "github.com/syntrixbase/topicrouter/internal/core/storage/config"
	natstransport "github.com/syntrixbase/topicrouter/internal/core/transport/nats"
	"github.com/syntrixbase/topicrouter/internal/router/delivery"
	"gopkg.in/yaml.v3"
)

// DefaultConfigDir is where LoadConfig looks for config.yml and
// config.local.yml when no explicit file is given.
const DefaultConfigDir = "config"

// Config holds the application configuration
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Components
	Storage   storage.Config       `yaml:"storage"`
	Lock      keylock.Config       `yaml:"lock"`
	Transport natstransport.Config `yaml:"transport"`

	// Router holds the service-level publish defaults.
	Router delivery.Config `yaml:"router"`
}

// DefaultConfig returns the configuration used before any file is read.
func DefaultConfig() *Config {
	return &Config{
		Logging:   DefaultLoggingConfig(),
		Metrics:   DefaultMetricsConfig(),
		Storage:   storage.DefaultConfig(),
		Lock:      keylock.DefaultConfig(),
		Transport: natstransport.DefaultConfig(),
		Router:    delivery.DefaultConfig(),
	}
}

// LoadConfig loads configuration from files and environment variables.
// With an empty path the order is: defaults -> config/config.yml ->
// config/config.local.yml -> ApplyEnvOverrides -> ResolvePaths -> Validate.
// A non-empty path replaces both files and must exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	configDir := DefaultConfigDir
	if path != "" {
		if err := loadFile(path, cfg, true); err != nil {
			return nil, err
		}
		configDir = filepath.Dir(path)
	} else {
		if err := loadFile(filepath.Join(configDir, "config.yml"), cfg, false); err != nil {
			return nil, err
		}
		if err := loadFile(filepath.Join(configDir, "config.local.yml"), cfg, false); err != nil {
			return nil, err
		}
	}

	if err := cfg.Apply(configDir, filepath.Dir(configDir)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply runs the configuration lifecycle over every section.
func (c *Config) Apply(configDir, dataDir string) error {
	if err := ApplyServiceConfigs(configDir, dataDir,
		&c.Logging,
		&c.Metrics,
		&c.Storage,
		&c.Lock,
		&c.Transport,
		&c.Router,
	); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	return nil
}

func loadFile(filename string, cfg *Config, required bool) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("read %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	return nil
}
