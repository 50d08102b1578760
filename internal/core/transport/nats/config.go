package nats

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Storage names accepted by Config.Storage.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
)

// Config configures the NATS JetStream transport.
type Config struct {
	URL           string           `yaml:"url"`
	StreamName    string           `yaml:"stream_name"`
	SubjectPrefix string           `yaml:"subject_prefix"`
	Storage       string           `yaml:"storage"` // memory, file
	MaxAge        time.Duration    `yaml:"max_age"`
	Endpoints     []EndpointConfig `yaml:"endpoints"`

	// IngressSubject enables publishing into the router over core NATS:
	// a message on <IngressSubject>.<topic> is published to topic.
	// Empty disables the ingress.
	IngressSubject string `yaml:"ingress_subject"`
}

// EndpointConfig declares one delivery identity published over NATS.
type EndpointConfig struct {
	Platform string `yaml:"platform"`
	SelfID   string `yaml:"self_id"`
}

func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		StreamName:    "TOPICROUTER",
		SubjectPrefix: "topicrouter",
		Storage:       StorageFile,
		MaxAge:        24 * time.Hour,
	}
}

// Enabled reports whether any endpoint or the ingress is configured.
func (c *Config) Enabled() bool {
	return len(c.Endpoints) > 0 || c.IngressSubject != ""
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.URL == "" {
		c.URL = defaults.URL
	}
	if c.StreamName == "" {
		c.StreamName = defaults.StreamName
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaults.SubjectPrefix
	}
	if c.Storage == "" {
		c.Storage = defaults.Storage
	}
	if c.MaxAge == 0 {
		c.MaxAge = defaults.MaxAge
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("TOPICROUTER_NATS_URL"); val != "" {
		c.URL = val
	}
}

// ResolvePaths is a no-op: the transport config has no paths.
func (c *Config) ResolvePaths(_, _ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Enabled() && c.URL == "" {
		result = multierror.Append(result, fmt.Errorf("transport.nats.url is required"))
	}
	if c.StreamName == "" {
		result = multierror.Append(result, fmt.Errorf("transport.nats.stream_name is required"))
	}
	if c.SubjectPrefix == "" {
		result = multierror.Append(result, fmt.Errorf("transport.nats.subject_prefix is required"))
	}
	if c.IngressSubject != "" && (c.IngressSubject == c.SubjectPrefix || strings.HasPrefix(c.IngressSubject, c.SubjectPrefix+".")) {
		result = multierror.Append(result, fmt.Errorf("transport.nats.ingress_subject must not overlap subject_prefix %q", c.SubjectPrefix))
	}
	if c.Storage != StorageMemory && c.Storage != StorageFile {
		result = multierror.Append(result, fmt.Errorf("transport.nats.storage must be 'memory' or 'file'"))
	}
	seen := make(map[EndpointConfig]struct{}, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if ep.Platform == "" || ep.SelfID == "" {
			result = multierror.Append(result, fmt.Errorf("transport.nats.endpoints[%d]: platform and self_id are required", i))
			continue
		}
		if _, dup := seen[ep]; dup {
			result = multierror.Append(result, fmt.Errorf("transport.nats.endpoints[%d]: duplicate endpoint %s/%s", i, ep.Platform, ep.SelfID))
		}
		seen[ep] = struct{}{}
	}
	return result.ErrorOrNil()
}
