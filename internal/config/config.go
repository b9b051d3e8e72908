// Package config loads ChimeraScript's run configuration from YAML,
// grounded on the teacher's device-profile loader
// (internal/script/profile's LoadProfile: os.ReadFile + yaml.Unmarshal).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the settings a `chimerascript run` invocation needs
// beyond the script file itself (spec §6: "a configured base URL").
type Config struct {
	// BaseURL is the scheme+host every HTTP call in the script is
	// resolved against. Required.
	BaseURL string `yaml:"base_url"`

	// RedisAddr, if set, enables live progress broadcast over Redis
	// pub/sub (SPEC_FULL.md §3 live-update component) as the run
	// executes. Optional; live updates are skipped when empty.
	RedisAddr string `yaml:"redis_addr,omitempty"`

	// DBPath, if set, persists run/case results to a SQLite database at
	// this path (SPEC_FULL.md §3 persistence component) instead of only
	// printing them. Optional.
	DBPath string `yaml:"db_path,omitempty"`

	// DefaultHeaders are applied to every HTTP call the run makes,
	// before any header the script itself sets (which takes precedence
	// on a name collision).
	DefaultHeaders map[string]string `yaml:"default_headers,omitempty"`
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if c.BaseURL == "" {
		return nil, fmt.Errorf("config %s: base_url is required", path)
	}
	return &c, nil
}

// LoadExclusionList reads a YAML document at path containing a flat
// list of dotted case-name patterns (matched the same way as `--filter`:
// an exact path, or a dotted prefix of one) and returns them. A case
// matching any pattern is skipped by the runner regardless of its own
// decorators.
func LoadExclusionList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exclusion list %s: %w", path, err)
	}
	var patterns []string
	if err := yaml.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("parsing exclusion list %s: %w", path, err)
	}
	return patterns, nil
}
