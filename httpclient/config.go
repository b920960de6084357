package httpclient

import (
	"fmt"
	"time"

	"github.com/praxislearn/authkit/version"
)

const defaultTimeout = 30 * time.Second

// Config configures the HTTP client.
type Config struct {
	// BaseURL is the base URL prepended to all request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout is the default request timeout. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// UserAgent overrides the default authkit User-Agent.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// SuppressCredentials disables the cookie jar entirely, so no
	// ambient session credential is stored or attached. Individual
	// requests can also opt out via Request.SuppressCredentials.
	SuppressCredentials bool `yaml:"suppress_credentials" mapstructure:"suppress_credentials"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = version.UserAgent()
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	return nil
}
