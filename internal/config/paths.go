package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "pinwheel"

// Dir returns the configuration directory. Priority:
// 1) $XDG_CONFIG_HOME/pinwheel (if XDG_CONFIG_HOME is set)
// 2) ~/.config/pinwheel
func Dir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", appName), nil
}

// DefaultConfigPath returns the default config file path, creating its
// directory if needed.
func DefaultConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	return filepath.Join(dir, "config.yaml"), nil
}
