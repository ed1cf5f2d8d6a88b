// Package config provides YAML configuration parsing for the raypak binary.
//
// This package enables running the heater monitor as a standalone binary
// with a configuration file, as an alternative to the programmatic SDK
// approach.
//
// Example configuration:
//
//	title: Backyard Pool
//	server: raymote.raypak.com
//	token: ${RAYPAK_TOKEN}
//	poll_interval: 30s
//	timeout: 10s
//	port: 8080
//	log_level: info
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultServer is used when the configuration does not name one.
const DefaultServer = "raymote.raypak.com"

// Poll interval bounds, inclusive. They protect the shared cloud API.
const (
	minPollInterval = 10 * time.Second
	maxPollInterval = 300 * time.Second
	minTimeout      = 1 * time.Second
)

const (
	defaultPort         = 8080
	defaultPollInterval = 30 * time.Second
	defaultTimeout      = 10 * time.Second
	defaultLogLevel     = "info"
)

// Config is the root configuration structure for the raypak binary.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Raypak" if not set.
	Title string `yaml:"title"`

	// Server is the device API host. Defaults to raymote.raypak.com.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Server string `yaml:"server"`

	// Token is the device credential. Required.
	// Supports environment variable substitution.
	Token string `yaml:"token"`

	// PollInterval is the time between refreshes, between 10s and 300s.
	// Defaults to 30s.
	PollInterval Duration `yaml:"poll_interval"`

	// Timeout bounds each device API call. At least 1s; defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Level returns the configured log level as a [slog.Level].
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in Title, Server and Token.
// Defaults are applied for Server, PollInterval (30s), Timeout (10s),
// Port (8080) and LogLevel (info).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables, applies defaults and
// validates the config.
func (c *Config) expandAndValidate() error {
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"title", &c.Title},
		{"server", &c.Server},
		{"token", &c.Token},
	} {
		expanded, err := expandEnvVars(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = strings.TrimSpace(expanded)
	}

	if c.Server == "" {
		c.Server = DefaultServer
	}
	if c.Token == "" {
		return errors.New("token is required")
	}

	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if d := c.PollInterval.Duration(); d < minPollInterval || d > maxPollInterval {
		return fmt.Errorf("poll_interval must be between %s and %s, got %s", minPollInterval, maxPollInterval, d)
	}

	if c.Timeout == 0 {
		c.Timeout = Duration(defaultTimeout)
	}
	if d := c.Timeout.Duration(); d < minTimeout {
		return fmt.Errorf("timeout must be at least %s, got %s", minTimeout, d)
	}

	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "":
		c.LogLevel = defaultLogLevel
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}
