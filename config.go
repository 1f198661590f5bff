package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr      string `yaml:"listen_addr"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	DBPath        string `yaml:"db_path"`
	FreeTierLimit int    `yaml:"free_tier_limit"`

	ClassifyTimeoutSecs   int `yaml:"classify_timeout_seconds"`
	BridgeCallTimeoutSecs int `yaml:"bridge_call_timeout_seconds"`

	AutoOrganizeSchedule string `yaml:"auto_organize_schedule"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverrideInt(&cfg.FreeTierLimit, "FREE_TIER_LIMIT")
	envOverrideInt(&cfg.ClassifyTimeoutSecs, "CLASSIFY_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.BridgeCallTimeoutSecs, "BRIDGE_CALL_TIMEOUT_SECONDS")
	envOverride(&cfg.AutoOrganizeSchedule, "AUTO_ORGANIZE_SCHEDULE")

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8377"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./taborganizer.db"
	}
	if cfg.FreeTierLimit == 0 {
		cfg.FreeTierLimit = 10
	}
	if cfg.ClassifyTimeoutSecs == 0 {
		cfg.ClassifyTimeoutSecs = 60
	}
	if cfg.BridgeCallTimeoutSecs == 0 {
		cfg.BridgeCallTimeoutSecs = 15
	}

	// Validate. The API key is deliberately not required here: a missing key
	// surfaces as a failed organize result, not a crash at startup.
	if cfg.FreeTierLimit < 1 {
		log.Fatalf("invalid free_tier_limit '%d': must be >= 1", cfg.FreeTierLimit)
	}
	if cfg.ClassifyTimeoutSecs < 1 {
		log.Fatalf("invalid classify_timeout_seconds '%d': must be >= 1", cfg.ClassifyTimeoutSecs)
	}
	if cfg.BridgeCallTimeoutSecs < 1 {
		log.Fatalf("invalid bridge_call_timeout_seconds '%d': must be >= 1", cfg.BridgeCallTimeoutSecs)
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func (c Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.ClassifyTimeoutSecs) * time.Second
}

func (c Config) BridgeCallTimeout() time.Duration {
	return time.Duration(c.BridgeCallTimeoutSecs) * time.Second
}
