package delivery

import (
	"errors"
	"time"
)

// Config controls how a publish is planned and delivered.
type Config struct {
	// IgnoreSelfIDWhenSending lets any endpoint of the subscription's
	// platform deliver; when false only the endpoint whose self id equals
	// the subscription's self id may.
	IgnoreSelfIDWhenSending bool `yaml:"ignore_self_id_when_sending"`

	// IgnoreNoBotMatched suppresses the error raised when no endpoint is
	// live or none pairs with a matched subscription.
	IgnoreNoBotMatched bool `yaml:"ignore_no_bot_matched"`

	// IgnoreNoSubscribers suppresses the error raised when no enabled
	// subscription matches the topic.
	IgnoreNoSubscribers bool `yaml:"ignore_no_subscribers"`

	// IgnoreTopicMultipleMatches delivers once per (platform, channel) even
	// when several of the channel's binding keys match.
	IgnoreTopicMultipleMatches bool `yaml:"ignore_topic_multiple_matches"`

	// SendInterval is the pause between two targets of the same platform.
	SendInterval time.Duration `yaml:"send_interval"`

	// MaxNumberOfResends bounds the retries after a failed first attempt.
	MaxNumberOfResends int `yaml:"max_number_of_resends"`

	// ResendInterval is the pause before each retry.
	ResendInterval time.Duration `yaml:"resend_interval"`

	// RetractTime deletes delivered messages after this delay. 0 disables it.
	RetractTime time.Duration `yaml:"retract_time"`
}

// DefaultConfig returns default delivery configuration.
func DefaultConfig() Config {
	return Config{
		IgnoreSelfIDWhenSending:    true,
		IgnoreNoBotMatched:         true,
		IgnoreNoSubscribers:        true,
		IgnoreTopicMultipleMatches: true,
		SendInterval:               time.Second,
		MaxNumberOfResends:         2,
		ResendInterval:             3 * time.Second,
		RetractTime:                0,
	}
}

// ApplyDefaults fills in zero values with defaults. Booleans and zero
// durations are legal values and stay as loaded.
func (c *Config) ApplyDefaults() { _ = c }

// ApplyEnvOverrides applies environment variable overrides.
// No delivery-specific env vars.
func (c *Config) ApplyEnvOverrides() { _ = c }

// ResolvePaths resolves relative paths using the given base directories.
// No paths to resolve in delivery config.
func (c *Config) ResolvePaths(_, _ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.SendInterval < 0 {
		return errors.New("send_interval must be non-negative")
	}
	if c.MaxNumberOfResends < 0 {
		return errors.New("max_number_of_resends must be non-negative")
	}
	if c.ResendInterval < 0 {
		return errors.New("resend_interval must be non-negative")
	}
	if c.RetractTime < 0 {
		return errors.New("retract_time must be non-negative")
	}
	return nil
}

// Override carries per-call settings. Nil fields keep the base value.
type Override struct {
	IgnoreSelfIDWhenSending    *bool
	IgnoreNoBotMatched         *bool
	IgnoreNoSubscribers        *bool
	IgnoreTopicMultipleMatches *bool
	SendInterval               *time.Duration
	MaxNumberOfResends         *int
	ResendInterval             *time.Duration
	RetractTime                *time.Duration
}

// Merge returns c with every non-nil field of o applied. c is not modified.
func (c Config) Merge(o *Override) Config {
	if o == nil {
		return c
	}
	if o.IgnoreSelfIDWhenSending != nil {
		c.IgnoreSelfIDWhenSending = *o.IgnoreSelfIDWhenSending
	}
	if o.IgnoreNoBotMatched != nil {
		c.IgnoreNoBotMatched = *o.IgnoreNoBotMatched
	}
	if o.IgnoreNoSubscribers != nil {
		c.IgnoreNoSubscribers = *o.IgnoreNoSubscribers
	}
	if o.IgnoreTopicMultipleMatches != nil {
		c.IgnoreTopicMultipleMatches = *o.IgnoreTopicMultipleMatches
	}
	if o.SendInterval != nil {
		c.SendInterval = *o.SendInterval
	}
	if o.MaxNumberOfResends != nil {
		c.MaxNumberOfResends = *o.MaxNumberOfResends
	}
	if o.ResendInterval != nil {
		c.ResendInterval = *o.ResendInterval
	}
	if o.RetractTime != nil {
		c.RetractTime = *o.RetractTime
	}
	return c
}

// Bool returns a pointer to v, for building an Override.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v, for building an Override.
func Int(v int) *int { return &v }

// Duration returns a pointer to v, for building an Override.
func Duration(v time.Duration) *time.Duration { return &v }
