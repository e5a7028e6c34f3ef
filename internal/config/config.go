// Package config holds the process configuration and the per-source
// adapter registry file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Defaults applied when the config file leaves a field unset.
const (
	DefaultWorkers             = 4
	DefaultFetchTimeoutSeconds = 120
)

// Config represents the flat podium process configuration.
type Config struct {
	Version string `json:"version"`
	// DBPath overrides the default database location.
	DBPath string `json:"db_path,omitempty"`
	// SourcesFile points at the YAML source registry.
	SourcesFile string `json:"sources_file,omitempty"`
	// Workers caps batch concurrency.
	Workers int `json:"workers,omitempty"`
	// FetchTimeoutSeconds bounds each adapter call.
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds,omitempty"`
}

// Dir returns the podium dot directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".podium"), nil
}

// LoadConfig reads config.json from the given directory. Returns error if
// no config found - caller should handle accordingly.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.FetchTimeoutSeconds <= 0 {
		cfg.FetchTimeoutSeconds = DefaultFetchTimeoutSeconds
	}
	return &cfg, nil
}

// SaveConfig writes config.json to the given directory.
func SaveConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Version:             "1",
		Workers:             DefaultWorkers,
		FetchTimeoutSeconds: DefaultFetchTimeoutSeconds,
	}
}
