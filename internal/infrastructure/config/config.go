// Package config loads the workspace settings from .qualify/config.yaml,
// applies environment overrides and reads an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/qualify/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/qualify/pkg/storage"
)

// Environment variables that override the config file.
const (
	EnvProvider = "QUALIFY_AI_PROVIDER"
	EnvModel    = "QUALIFY_AI_MODEL"
)

const (
	DefaultProvider   = "openai"
	DefaultTimeoutSec = 120
)

// Config stores provider defaults and presentation settings.
type Config struct {
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model,omitempty"`
	BaseURL      string  `yaml:"base_url,omitempty"`
	Temperature  float64 `yaml:"temperature"`
	TimeoutSec   int     `yaml:"timeout_sec,omitempty"`
	TemplatesDir string  `yaml:"templates_dir,omitempty"`
	History      bool    `yaml:"history"`

	Webhooks []webhook.Endpoint `yaml:"webhooks,omitempty"`
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	return &Config{
		Provider:   DefaultProvider,
		TimeoutSec: DefaultTimeoutSec,
	}
}

// Timeout is the per-call provider deadline.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return DefaultTimeoutSec * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// Redacted returns a copy with webhook secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Webhooks = make([]webhook.Endpoint, len(c.Webhooks))
	for i, ep := range c.Webhooks {
		if ep.Secret != "" {
			ep.Secret = "********"
		}
		out.Webhooks[i] = ep
	}
	return &out
}

// LoadEnv reads <root>/.env into the process environment. Values in the
// file win over variables already set. A missing file is not an error.
func LoadEnv(root string) error {
	path := filepath.Join(root, ".env")
	if err := godotenv.Overload(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Read returns the config file as written, or nil when it does not exist.
func Read(root string) (*Config, error) {
	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(storage.ConfigFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Load returns the effective settings: defaults, then the config file,
// then environment overrides.
func Load(root string) (*Config, error) {
	cfg := Default()

	file, err := Read(root)
	if err != nil {
		return nil, err
	}
	if file != nil {
		cfg.merge(file)
	}

	if v := strings.TrimSpace(os.Getenv(EnvProvider)); v != "" {
		cfg.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		cfg.Model = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.TimeoutSec < 0 {
		return fmt.Errorf("timeout_sec must not be negative, got %d", c.TimeoutSec)
	}
	return webhook.ValidateEndpoints(c.Webhooks)
}

// Save writes cfg to .qualify/config.yaml, creating the directory.
func Save(root string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	repo := storage.NewFilesystemRepository(root)
	if err := repo.Initialize(); err != nil {
		return err
	}
	path, err := repo.ResolvePath(storage.ConfigFile)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) merge(o *Config) {
	if o.Provider != "" {
		c.Provider = o.Provider
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.BaseURL != "" {
		c.BaseURL = o.BaseURL
	}
	if o.TimeoutSec != 0 {
		c.TimeoutSec = o.TimeoutSec
	}
	if o.TemplatesDir != "" {
		c.TemplatesDir = o.TemplatesDir
	}
	c.Temperature = o.Temperature
	c.History = o.History
	if len(o.Webhooks) > 0 {
		c.Webhooks = o.Webhooks
	}
}
