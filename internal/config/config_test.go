package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Strategy != "tools" {
		t.Errorf("Strategy = %q, want tools", cfg.AI.Strategy)
	}
	if cfg.Scan.Interval != time.Hour {
		t.Errorf("Interval = %v, want 1h", cfg.Scan.Interval)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("ccm:\n  url: http://file-host:3000\nai:\n  strategy: phases\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CCM_URL", "http://env-host:3000")
	t.Setenv("TG_CHAT_ID", "123456")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CCM.URL != "http://env-host:3000" {
		t.Errorf("CCM.URL = %q, env should win over file", cfg.CCM.URL)
	}
	if cfg.AI.Strategy != "phases" {
		t.Errorf("Strategy = %q, want phases from file", cfg.AI.Strategy)
	}
	if cfg.Telegram.ChatID != 123456 {
		t.Errorf("ChatID = %d, want 123456", cfg.Telegram.ChatID)
	}
}

func TestBotEnabled(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BotEnabled() {
		t.Error("BotEnabled should be false without credentials")
	}
	cfg.Telegram.BotToken = "tok"
	cfg.Telegram.ChatID = 42
	if !cfg.BotEnabled() {
		t.Error("BotEnabled should be true with credentials")
	}
}
