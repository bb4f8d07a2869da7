// Package config defines the zapchive configuration and its YAML loader.
// Secrets resolve through a chain: OS keyring, environment variable, then the
// plaintext config value. A .env file next to the config is loaded first.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jpereira/zapchive/pkg/zapchive/channels/whatsapp"
	"github.com/jpereira/zapchive/pkg/zapchive/embed"
	"github.com/jpereira/zapchive/pkg/zapchive/scheduler"
	"github.com/jpereira/zapchive/pkg/zapchive/summarize"
)

// Config holds all zapchive configuration.
type Config struct {
	// Timezone is the timezone for day boundaries and the daily trigger
	// (e.g. "America/Sao_Paulo"). Defaults to UTC.
	Timezone string `yaml:"timezone"`

	// Database configures the archive SQLite database.
	Database DatabaseConfig `yaml:"database"`

	// Summary configures the text-generation backend.
	Summary summarize.GeneratorConfig `yaml:"summary"`

	// Scheduler configures the daily summary job.
	Scheduler scheduler.Config `yaml:"scheduler"`

	// Embedding configures the embedding backend for semantic search.
	Embedding embed.Config `yaml:"embedding"`

	// WhatsApp configures the WhatsApp connection.
	WhatsApp whatsapp.Config `yaml:"whatsapp"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig configures the archive database.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Timezone:  "UTC",
		Database:  DatabaseConfig{Path: "./data/zapchive.db"},
		Summary:   summarize.DefaultGeneratorConfig(),
		Scheduler: scheduler.DefaultConfig(),
		Embedding: embed.DefaultConfig(),
		WhatsApp:  whatsapp.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads the config file, applies ${VAR} environment substitution and
// resolves API keys through the secret chain. A missing file returns the
// defaults so first runs work before setup.
func Load(path string) (Config, error) {
	// Best-effort .env load; absence is fine.
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			resolveSecrets(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	expanded := expandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	resolveSecrets(&cfg)
	return cfg, nil
}

// Location returns the configured timezone, falling back to UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// envVarPattern matches ${VAR_NAME} placeholders.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} placeholders with environment values.
// Unset variables expand to the empty string.
func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// resolveSecrets fills empty API keys from the keyring/env chain.
func resolveSecrets(cfg *Config) {
	cfg.Summary.APIKey = ResolveSecret(cfg.Summary.APIKey, cfg.Summary.Provider)
	cfg.Embedding.APIKey = ResolveSecret(cfg.Embedding.APIKey, cfg.Embedding.Provider)
}

// Save writes the config to disk as YAML.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}
