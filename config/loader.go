package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoaderOptions controls where configuration is read from.
type LoaderOptions struct {
	// ConfigFile is an explicit YAML config path. When empty, standard
	// locations are searched.
	ConfigFile string
	// EnvFile is an explicit .env path. When empty, standard locations
	// are searched.
	EnvFile string
	// DisableEnvFile skips .env resolution entirely.
	DisableEnvFile bool
}

// envFileCandidates are searched in order when no explicit env file is given.
var envFileCandidates = []string{".env.local", ".env"}

// configFileCandidates are searched in order when no explicit config file is given.
var configFileCandidates = []string{
	"./authkit.yml",
	"./config/authkit.yml",
	"../config/authkit.yml",
}

// Load resolves the configuration once at boot: .env overlay first,
// then the YAML file, then AUTHKIT_-prefixed environment variables.
// The returned Config is validated and should be treated as immutable.
func Load(opts LoaderOptions) (*Config, error) {
	if !opts.DisableEnvFile {
		if envFile := resolveFile(opts.EnvFile, envFileCandidates); envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("config: load env file %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix("AUTHKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Environment-only deployments are valid: bind the keys viper
	// must materialize without a config file.
	for _, key := range []string{
		"base_url", "timeout", "features",
		"oauth.authorize_url", "oauth.client_id", "oauth.redirect_url",
		"logging.level", "logging.format", "logging.output",
	} {
		_ = v.BindEnv(key)
	}

	if configFile := resolveFile(opts.ConfigFile, configFileCandidates); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// resolveFile returns the explicit path when given, otherwise the
// first candidate that exists.
func resolveFile(explicit string, candidates []string) string {
	if explicit != "" {
		return explicit
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
