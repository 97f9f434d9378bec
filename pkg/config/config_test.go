package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Entitlements.CacheTTL != 60*time.Second {
		t.Errorf("expected 60s cache TTL, got %v", cfg.Entitlements.CacheTTL)
	}
	if cfg.Slots.LeaseTTL != time.Hour {
		t.Errorf("expected 1h lease TTL, got %v", cfg.Slots.LeaseTTL)
	}
	if cfg.Safety.MaxChunkLen != 1900 {
		t.Errorf("expected 1900 max chunk len, got %d", cfg.Safety.MaxChunkLen)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "sk-test-123")

	content := `
db_path: "test.db"
redis:
  addr: "redis:6380"
entitlements:
  cache_ttl: 30s
delivery:
  bucket_capacity: 10
  backoff_base: 1s
safety:
  moderation_level: 0
llm:
  url: https://api.openai.com
  api_key: ${TEST_LLM_KEY}
  model: gpt-4o-mini
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Redis.Addr != "redis:6380" {
		t.Errorf("expected redis:6380, got %s", cfg.Redis.Addr)
	}
	if cfg.LLM.APIKey != "sk-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.LLM.APIKey)
	}
	if cfg.Entitlements.CacheTTL != 30*time.Second {
		t.Errorf("expected 30s cache TTL, got %v", cfg.Entitlements.CacheTTL)
	}
	if cfg.Delivery.BucketCapacity != 10 {
		t.Errorf("expected capacity 10, got %v", cfg.Delivery.BucketCapacity)
	}
	if cfg.Delivery.SendSpacing != 200*time.Millisecond {
		t.Errorf("default send spacing lost: got %v", cfg.Delivery.SendSpacing)
	}
	if cfg.Safety.ModerationLevel != 0 {
		t.Errorf("expected moderation level 0, got %d", cfg.Safety.ModerationLevel)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
