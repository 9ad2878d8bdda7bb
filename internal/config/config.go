// Package config holds the smolchat session configuration.
// Resolution order: defaults, then the YAML config file, then
// environment variables; CLI flags are applied last by cmd/smolchat.
// The resolved Config is immutable for the lifetime of the process.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all smolchat configuration.
type Config struct {
	// Daemon endpoint
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Model and prompt
	Model  string `yaml:"model"`
	System string `yaml:"system"`

	// Generation parameters. Zero values mean "daemon default".
	Temperature float64 `yaml:"temperature"`
	NumCtx      int     `yaml:"num_ctx"`
	NumPredict  int     `yaml:"num_predict"`

	// Output behavior
	NoStream bool   `yaml:"no_stream"`
	Theme    string `yaml:"theme"` // "light" or "dark"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:  "127.0.0.1",
		Port:  11434,
		Model: "smollm2:1.7b",
		Theme: "dark",
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".smolchat", "config.yaml"), nil
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv("OLLAMA_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			c.Port = p
		}
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		c.Model = model
	}
}

// BaseURL returns the daemon HTTP endpoint.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}
