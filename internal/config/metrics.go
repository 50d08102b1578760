package config

import (
	"fmt"
	"os"
	"strings"
)

// MetricsConfig controls the Prometheus endpoint of the serve command.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // host:port
	Path    string `yaml:"path"`
}

// DefaultMetricsConfig returns default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: true,
		Listen:  ":9090",
		Path:    "/metrics",
	}
}

func (c *MetricsConfig) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = ":9090"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

func (c *MetricsConfig) ApplyEnvOverrides() {
	if v := os.Getenv("TOPICROUTER_METRICS_LISTEN"); v != "" {
		c.Listen = v
	}
}

func (c *MetricsConfig) ResolvePaths(_, _ string) { _ = c }

func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("metrics path must start with '/': %q", c.Path)
	}
	return nil
}
