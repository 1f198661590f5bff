package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg := LoadConfig()

	if cfg.ListenAddr != "127.0.0.1:8377" {
		t.Fatalf("unexpected listen addr default: %q", cfg.ListenAddr)
	}
	if cfg.DBPath != "./taborganizer.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.FreeTierLimit != 10 {
		t.Fatalf("unexpected free tier default: %d", cfg.FreeTierLimit)
	}
	if cfg.ClassifyTimeout() != 60*time.Second {
		t.Fatalf("unexpected classify timeout default: %s", cfg.ClassifyTimeout())
	}
	if cfg.BridgeCallTimeout() != 15*time.Second {
		t.Fatalf("unexpected bridge timeout default: %s", cfg.BridgeCallTimeout())
	}
	if cfg.AnthropicAPIKey != "sk-test" {
		t.Fatalf("unexpected api key: %q", cfg.AnthropicAPIKey)
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
anthropic_api_key: "yaml-key"
llm_model: "yaml-model"
free_tier_limit: 25
db_path: "/tmp/yaml.db"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config failed: %v", err)
	}
	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("LLM_MODEL", "env-model")

	cfg := LoadConfig()

	if cfg.AnthropicAPIKey != "yaml-key" {
		t.Fatalf("expected yaml api key, got %q", cfg.AnthropicAPIKey)
	}
	if cfg.LLMModel != "env-model" {
		t.Fatalf("env must override yaml, got %q", cfg.LLMModel)
	}
	if cfg.FreeTierLimit != 25 {
		t.Fatalf("expected yaml free tier 25, got %d", cfg.FreeTierLimit)
	}
	if cfg.DBPath != "/tmp/yaml.db" {
		t.Fatalf("expected yaml db path, got %q", cfg.DBPath)
	}
}

func TestLoadConfigMissingAPIKeyIsNotFatal(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := LoadConfig()

	// The daemon must start without credentials; organize reports the
	// missing key as a run failure instead.
	if cfg.AnthropicAPIKey != "" {
		t.Fatalf("expected empty api key, got %q", cfg.AnthropicAPIKey)
	}
}
