package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Config holds the tool's configuration options.
type Config struct {
	DumpHeader bool `json:"dump_header,omitempty"` //nolint:tagliatelle // snake_case for config file
	Verbose    bool `json:"verbose,omitempty"`
}

// globalConfigPath returns the global config file location. Uses
// $XDG_CONFIG_HOME/fitsls/config.json if set, otherwise
// ~/.config/fitsls/config.json. Returns empty if no home directory.
func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "fitsls", "config.json")
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "fitsls", "config.json")
	}

	return ""
}

// LoadConfig loads the global config file, then the explicit one when given
// (explicit settings win). Config files are JWCC (JSON with comments and
// trailing commas). A missing global config is not an error; a missing
// explicit config is.
func LoadConfig(explicitPath string, env []string) (Config, error) {
	var cfg Config

	if global := globalConfigPath(env); global != "" {
		loaded, err := loadConfigFile(global)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", global, err)
		}

		if err == nil {
			cfg = loaded
		}
	}

	if explicitPath != "" {
		loaded, err := loadConfigFile(explicitPath)
		if err != nil {
			return Config{}, fmt.Errorf("load %s: %w", explicitPath, err)
		}

		cfg = loaded
	}

	return cfg, nil
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
