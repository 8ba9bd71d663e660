// Package config loads the optional YAML configuration file. Every field
// mirrors a CLI flag; flags take precedence over file values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	// Adapter is the BlueZ adapter name (hci0, ...). Empty means
	// auto-select when exactly one adapter exists.
	Adapter string `yaml:"adapter"`
	// Controller is the emulated model: JOY_CON_L, JOY_CON_R, or
	// PRO_CONTROLLER.
	Controller string `yaml:"controller"`
	Log        Log    `yaml:"log"`
}

// Log configures logging.
type Log struct {
	// Level is a zerolog level name (info, debug, trace, ...).
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Controller: "PRO_CONTROLLER",
		Log:        Log{Level: "info"},
	}
}

// Load reads and parses the file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
