package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Timezone != "UTC" {
		t.Errorf("expected UTC default timezone, got %q", cfg.Timezone)
	}
	if cfg.Database.Path == "" {
		t.Error("expected default database path")
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.TriggerTime != "03:00" {
		t.Errorf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if cfg.Embedding.Provider != "none" {
		t.Errorf("expected embeddings off by default, got %q", cfg.Embedding.Provider)
	}
	if cfg.WhatsApp.CommandPrefix != "!" {
		t.Errorf("expected ! prefix, got %q", cfg.WhatsApp.CommandPrefix)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("expected defaults, got timezone %q", cfg.Timezone)
	}
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
timezone: America/Sao_Paulo
database:
  path: /tmp/arc.db
summary:
  provider: anthropic
  max_tokens: 2048
scheduler:
  enabled: false
  trigger_time: "04:30"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Timezone != "America/Sao_Paulo" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if cfg.Database.Path != "/tmp/arc.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Summary.Provider != "anthropic" || cfg.Summary.MaxTokens != 2048 {
		t.Errorf("summary = %+v", cfg.Summary)
	}
	if cfg.Scheduler.Enabled || cfg.Scheduler.TriggerTime != "04:30" {
		t.Errorf("scheduler = %+v", cfg.Scheduler)
	}
	// Unset sections keep their defaults.
	if cfg.WhatsApp.CommandPrefix != "!" {
		t.Errorf("expected default prefix, got %q", cfg.WhatsApp.CommandPrefix)
	}
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("ZAPCHIVE_TEST_TZ", "Europe/Lisbon")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "timezone: ${ZAPCHIVE_TEST_TZ}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timezone != "Europe/Lisbon" {
		t.Errorf("expected substituted timezone, got %q", cfg.Timezone)
	}
}

func TestExpandEnv_UnsetIsEmpty(t *testing.T) {
	got := expandEnv("key: ${ZAPCHIVE_DEFINITELY_UNSET_VAR}")
	if got != "key: " {
		t.Errorf("got %q", got)
	}
}

func TestLocation(t *testing.T) {
	t.Run("empty falls back to UTC", func(t *testing.T) {
		loc, err := Config{}.Location()
		if err != nil || loc.String() != "UTC" {
			t.Errorf("got %v, %v", loc, err)
		}
	})

	t.Run("invalid errors", func(t *testing.T) {
		if _, err := (Config{Timezone: "Mars/Olympus"}).Location(); err == nil {
			t.Error("expected error for bogus timezone")
		}
	})
}

func TestProviderKeyEnvName(t *testing.T) {
	if got := ProviderKeyEnvName("openai"); got != "OPENAI_API_KEY" {
		t.Errorf("got %q", got)
	}
	if got := ProviderKeyEnvName("Anthropic"); got != "ANTHROPIC_API_KEY" {
		t.Errorf("got %q", got)
	}
	if got := ProviderKeyEnvName("acme"); got != "API_KEY" {
		t.Errorf("got %q", got)
	}
}

func TestResolveSecret_ConfiguredWins(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")

	if got := ResolveSecret("explicit", "openai"); got != "explicit" {
		t.Errorf("expected explicit value, got %q", got)
	}
	if got := ResolveSecret("", "openai"); got != "from-env" {
		t.Errorf("expected env fallback, got %q", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Timezone = "America/Sao_Paulo"
	cfg.Summary.Provider = "anthropic"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Timezone != "America/Sao_Paulo" || loaded.Summary.Provider != "anthropic" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}
