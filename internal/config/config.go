// Package config implements the Config Loader: reading and validating
// the agent's configuration document, the external interface boundary
// that gates whether a run proceeds at all.
//
// Grounded on the teacher's internal/config/config.go Load/DefaultPath
// shape (stat-then-decode-or-default), reworked from TOML
// (github.com/BurntSushi/toml) to encoding/json: spec.md §6 fixes the
// wire format of stats-config.json as JSON, produced by the out-of-scope
// configuration CLI. This is an external interface the engine does not
// get to redesign, so the teacher's TOML dependency is not carried into
// this component -- see DESIGN.md.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the Agent Config document at $HOME/.claude/stats-config.json.
type Config struct {
	Username  string `json:"username"`
	ServerURL string `json:"serverUrl"`
	Enabled   bool   `json:"enabled"`
}

// Runnable reports whether a run should proceed at all: the config must
// be present, enabled, and carry a non-empty server URL (spec.md §6, §7).
func (c Config) Runnable() bool {
	return c.Enabled && c.ServerURL != ""
}

// DefaultPath returns $HOME/.claude/stats-config.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".claude", "stats-config.json")
	}
	return filepath.Join(home, ".claude", "stats-config.json")
}

// Load reads the Agent Config at path. An absent file is not an error:
// it yields a zero-value Config, which Runnable reports false for,
// matching spec.md §7's "Configuration absent / disabled -> Silent exit".
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}
