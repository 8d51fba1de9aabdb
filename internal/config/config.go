// Package config loads the optional YAML configuration file governing
// the ambient layer: reserved nicknames, the inbound rate-limit budget,
// the periodic reporter interval, and hook definitions. Absence of a
// config file is equivalent to every field at its zero/default value —
// the wire protocol itself takes no configuration.
package config

import (
	"fmt"
	"os"

	semver "github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// schemaConstraint is the range of config schema versions this build
// understands. Bumped only on a breaking change to the YAML shape.
const schemaConstraint = ">= 1.0.0, < 2.0.0"

// HookDefinition describes one shell or webhook hook to register for a
// given event type.
type HookDefinition struct {
	Event   string `yaml:"event"`
	Type    string `yaml:"type"` // "shell" or "webhook"
	Command string `yaml:"command,omitempty"`
	URL     string `yaml:"url,omitempty"`
}

// RateLimit is the per-connection inbound line budget.
type RateLimit struct {
	LinesPerSecond float64 `yaml:"lines_per_second"`
	Burst          int     `yaml:"burst"`
}

// Reporter configures the periodic connected-client/resource census.
type Reporter struct {
	// Schedule is a cron expression (robfig/cron/v3 syntax). Empty
	// disables the reporter entirely.
	Schedule string `yaml:"schedule"`
}

// Config is the root of the optional YAML configuration file.
type Config struct {
	SchemaVersion     string           `yaml:"schema_version"`
	ReservedNicknames []string         `yaml:"reserved_nicknames"`
	RateLimit         RateLimit        `yaml:"rate_limit"`
	Reporter          Reporter         `yaml:"reporter"`
	Hooks             []HookDefinition `yaml:"hooks"`
}

// Default returns the all-defaults configuration used when no -config
// flag is given.
func Default() *Config {
	return &Config{
		SchemaVersion:     "1.0.0",
		ReservedNicknames: nil,
		RateLimit:         RateLimit{LinesPerSecond: 0, Burst: 0},
	}
}

// Load reads and validates the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the declared schema version against the range this
// build understands.
func (c *Config) Validate() error {
	if c.SchemaVersion == "" {
		return nil
	}

	v, err := semver.NewVersion(c.SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid schema_version %q: %w", c.SchemaVersion, err)
	}

	constraint, err := semver.NewConstraint(schemaConstraint)
	if err != nil {
		return err // unreachable: schemaConstraint is a fixed literal
	}

	if !constraint.Check(v) {
		return fmt.Errorf("schema_version %s does not satisfy %s", c.SchemaVersion, schemaConstraint)
	}

	return nil
}
