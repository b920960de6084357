package config

import (
	"time"

	"github.com/praxislearn/authkit/logger"
	"github.com/praxislearn/authkit/oauth"
	"github.com/praxislearn/authkit/validation"
)

// Config is the process-wide authkit configuration.
type Config struct {
	// BaseURL is the identity backend base URL.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Timeout is the default transport timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// OAuth configures the authorization-code flow.
	OAuth oauth.Config `yaml:"oauth" mapstructure:"oauth"`

	// Features is the list of enabled dashboard features. An empty
	// list enables every feature: the source system treats an absent
	// feature list as "all on", and that default-open behavior is
	// preserved deliberately rather than silently inverted.
	Features []string `yaml:"features" mapstructure:"features"`

	// Logging configures structured logging.
	Logging logger.Config `yaml:"logging" mapstructure:"logging"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	c.OAuth.ApplyDefaults()
	c.Logging.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	// OAuth is optional: only validated when any field is set.
	if c.OAuth.ClientID != "" || c.OAuth.AuthorizeURL != "" || c.OAuth.RedirectURL != "" {
		if err := c.OAuth.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FeatureEnabled reports whether a feature is enabled. An empty
// feature list enables everything (documented default-open behavior).
func (c *Config) FeatureEnabled(name string) bool {
	if len(c.Features) == 0 {
		return true
	}
	for _, f := range c.Features {
		if f == name {
			return true
		}
	}
	return false
}
