package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global
// config, defaults. Missing files are not errors; malformed JSON is.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: $XDG_CONFIG_HOME/publo/config.json
// Project: .publo/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	return Load(GlobalPath(), filepath.Join(".publo", "config.json"))
}

// GlobalPath returns the per-user config file path.
func GlobalPath() string {
	return filepath.Join(xdg.ConfigHome, "publo", "config.json")
}

// DataPath returns a per-user data file path (used for the session db).
func DataPath(name string) string {
	return filepath.Join(xdg.DataHome, "publo", name)
}

// mergeConfigFile reads a JSON config file and merges it into base.
// Missing files are silently skipped.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for key, provider := range loaded.Providers {
		base.Providers[key] = provider
	}
	for key, role := range loaded.Roles {
		base.Roles[key] = role
	}

	// Tuning only overrides when the file actually has a tuning section;
	// otherwise a providers-only file would zero out the defaults.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil {
		if _, hasTuning := probe["tuning"]; hasTuning {
			base.Tuning = loaded.Tuning
		}
	}

	return nil
}
