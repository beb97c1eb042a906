// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/haniff/arena/internal/store"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig selects the debate repository backend.
type StorageConfig struct {
	// Driver is "memory" (default) or "sqlite".
	Driver string `yaml:"driver"`
	// Path is the database file for the sqlite driver.
	Path string `yaml:"path,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8182,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path, falling back to
// defaults when the file does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, proceed with defaults
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// CreateStore builds the repository selected by the storage settings.
func (c *Config) CreateStore() (store.Store, error) {
	switch c.Storage.Driver {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		path := c.Storage.Path
		if path == "" {
			path = DefaultDBPath()
		}
		return store.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "arena.yaml"
	}
	return filepath.Join(home, ".arena", "config.yaml")
}

// DefaultDBPath returns the default sqlite database path.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "arena.db"
	}
	return filepath.Join(home, ".arena", "arena.db")
}

// GenerateExample generates an example configuration file.
func GenerateExample() string {
	example := `# arena configuration file
# Place this file at ~/.arena/config.yaml

server:
  port: 8182              # HTTP listen port

storage:
  driver: memory          # "memory" (default) or "sqlite"
  # path: ~/.arena/arena.db

# Provider credentials come from the environment (or a .env file in the
# working directory):
#   ANTHROPIC_API_KEY=...
#   OPENAI_API_KEY=...
# Ollama needs no credentials; point bindings at its endpoint instead.
`
	return example
}
