// Package config loads the plexinstall configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/plexinstall/internal/elevate"
	"github.com/plexsphere/plexinstall/internal/identity"
	"github.com/plexsphere/plexinstall/internal/installer"
	"github.com/plexsphere/plexinstall/internal/remote"
)

const (
	// DefaultPath is the configuration file read when none is given.
	DefaultPath = "/etc/plexinstall/config.yaml"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)

// Config is the top-level configuration. It aggregates the subsystem
// configurations and is populated from a YAML file via Parse.
type Config struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	Identity  identity.Config  `yaml:"identity"`
	Installer installer.Config `yaml:"installer"`
	Elevation elevate.Config   `yaml:"elevation"`

	// SSH is only used when Host is set.
	SSH remote.SSHConfig `yaml:"ssh"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Identity.ApplyDefaults()
	c.Installer.ApplyDefaults()
	c.Elevation.ApplyDefaults()
	c.SSH.ApplyDefaults()
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q (must be debug, info, warn or error)", c.LogLevel)
	}
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Installer.Validate(); err != nil {
		return err
	}
	if err := c.Elevation.Validate(); err != nil {
		return err
	}
	if c.SSH.Host != "" {
		if err := c.SSH.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Parse reads a YAML configuration file, applies defaults and validates it.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is Parse, except that a missing file at DefaultPath yields the
// defaults. A missing file at any other path is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg, err := Parse(path)
	if err != nil {
		if path == DefaultPath && errors.Is(err, fs.ErrNotExist) {
			return Defaults(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}
