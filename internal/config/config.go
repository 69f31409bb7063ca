// Package config handles jarvisd configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete daemon configuration.
type Config struct {
	// Telegram holds chat transport settings.
	Telegram TelegramConfig `yaml:"telegram"`

	// CCM holds settings for the remote task-management service.
	CCM CCMConfig `yaml:"ccm"`

	// AI holds language-model settings.
	AI AIConfig `yaml:"ai"`

	// Agent holds coding-agent execution settings.
	Agent AgentConfig `yaml:"agent"`

	// Scan holds inventory scanner settings.
	Scan ScanConfig `yaml:"scan"`

	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`

	// HTTPAddr is the local API listen address.
	HTTPAddr string `yaml:"http_addr"`
}

// TelegramConfig holds bot credentials and the single authorized chat.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// CCMConfig holds the remote task-management service endpoint.
type CCMConfig struct {
	URL string `yaml:"url"`
}

// AIConfig holds Anthropic API settings.
type AIConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`

	// Strategy selects the orchestration design: "tools" runs the
	// tool-calling loop, "phases" runs classify/resolve/execute/summarize.
	Strategy string `yaml:"strategy"`
}

// AgentConfig holds coding-agent execution settings.
type AgentConfig struct {
	// SSHHost enables remote execution when set.
	SSHHost string `yaml:"ssh_host"`
	SSHUser string `yaml:"ssh_user"`
	SSHKey  string `yaml:"ssh_key"`

	// SpriteName runs the agent on a Fly.io sprite instead of SSH.
	SpriteName  string `yaml:"sprite_name"`
	SpriteToken string `yaml:"sprite_token"`

	// DefaultDir is the working directory when no project is selected.
	DefaultDir string `yaml:"default_dir"`
}

// ScanConfig holds inventory scanner settings.
type ScanConfig struct {
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
	MaxDepth int           `yaml:"max_depth"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		CCM: CCMConfig{
			URL: "http://localhost:3000",
		},
		AI: AIConfig{
			Model:     "claude-haiku-4-5-20251001",
			MaxTokens: 1024,
			Strategy:  "tools",
		},
		Agent: AgentConfig{
			SSHUser:    "root",
			DefaultDir: "/root",
		},
		Scan: ScanConfig{
			Dir:      filepath.Join(home, "projects"),
			Interval: time.Hour,
			MaxDepth: 3,
		},
		DBPath:   filepath.Join(home, ".local", "share", "jarvis", "jarvis.db"),
		HTTPAddr: ":3001",
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "jarvis", "config.yaml")
}

// Load reads configuration from path, falling back to defaults when the file
// is absent, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TG_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TG_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("CCM_URL"); v != "" {
		c.CCM.URL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("JARVIS_AI_STRATEGY"); v != "" {
		c.AI.Strategy = v
	}
	if v := os.Getenv("SSH_HOST"); v != "" {
		c.Agent.SSHHost = v
	}
	if v := os.Getenv("SSH_USER"); v != "" {
		c.Agent.SSHUser = v
	}
	if v := os.Getenv("SPRITE_NAME"); v != "" {
		c.Agent.SpriteName = v
	}
	if v := os.Getenv("SPRITES_TOKEN"); v != "" {
		c.Agent.SpriteToken = v
	}
	if v := os.Getenv("SCAN_DIR"); v != "" {
		c.Scan.Dir = expandPath(v)
	}
	if v := os.Getenv("SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Scan.Interval = d
		}
	}
	if v := os.Getenv("JARVIS_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("JARVIS_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
}

// BotEnabled reports whether Telegram credentials are configured.
func (c *Config) BotEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != 0
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
