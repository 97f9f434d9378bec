package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Murmur configuration.
type Config struct {
	DBPath       string             `yaml:"db_path"`
	Redis        RedisConfig        `yaml:"redis"`
	Entitlements EntitlementsConfig `yaml:"entitlements"`
	Slots        SlotsConfig        `yaml:"slots"`
	Delivery     DeliveryConfig     `yaml:"delivery"`
	Safety       SafetyConfig       `yaml:"safety"`
	LLM          LLMConfig          `yaml:"llm"`
}

// RedisConfig identifies the shared Redis used for the distributed
// cache tier, the invalidation bus and the slot sets.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EntitlementsConfig controls the entitlement cache.
type EntitlementsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// SlotsConfig controls the concurrency slot limiter.
type SlotsConfig struct {
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

// DeliveryConfig controls outbound pacing and retry behavior.
type DeliveryConfig struct {
	BucketCapacity float64       `yaml:"bucket_capacity"`
	RefillPerSec   float64       `yaml:"refill_per_sec"`
	SendSpacing    time.Duration `yaml:"send_spacing"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffCeiling time.Duration `yaml:"backoff_ceiling"`
	TypingInterval time.Duration `yaml:"typing_interval"`
	EditInterval   time.Duration `yaml:"edit_interval"`
}

// SafetyConfig controls the streaming safety pipeline.
type SafetyConfig struct {
	ModerationLevel int `yaml:"moderation_level"`
	MaxChunkLen     int `yaml:"max_chunk_len"`
}

// LLMConfig defines the upstream text-generation endpoint.
type LLMConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath: "murmur.db",
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Entitlements: EntitlementsConfig{
			CacheTTL: 60 * time.Second,
		},
		Slots: SlotsConfig{
			LeaseTTL: time.Hour,
		},
		Delivery: DeliveryConfig{
			BucketCapacity: 5,
			RefillPerSec:   1,
			SendSpacing:    200 * time.Millisecond,
			BackoffBase:    2 * time.Second,
			BackoffCeiling: 10 * time.Second,
			TypingInterval: 8 * time.Second,
			EditInterval:   1200 * time.Millisecond,
		},
		Safety: SafetyConfig{
			ModerationLevel: 5,
			MaxChunkLen:     1900,
		},
		LLM: LLMConfig{
			URL:       "https://api.openai.com",
			Model:     "gpt-4o-mini",
			MaxTokens: 512,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
