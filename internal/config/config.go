package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Hyperliquid HyperliquidConfig `yaml:"hyperliquid"`
	DeepSeek    DeepSeekConfig    `yaml:"deepseek"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Web         WebConfig         `yaml:"web"`
	Logging     LoggingConfig     `yaml:"logging"`
	CacheDir    string            `yaml:"cache_dir"`
}

type HyperliquidConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type DeepSeekConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Hyperliquid.BaseURL == "" {
		cfg.Hyperliquid.BaseURL = "https://api.hyperliquid.xyz/info"
	}
	if cfg.Hyperliquid.TimeoutSeconds == 0 {
		cfg.Hyperliquid.TimeoutSeconds = 30
	}
	if cfg.DeepSeek.Model == "" {
		cfg.DeepSeek.Model = "deepseek-chat"
	}
	if cfg.DeepSeek.TimeoutSeconds == 0 {
		cfg.DeepSeek.TimeoutSeconds = 120
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "data/cache"
	}
}

func (c *Config) Validate() error {
	if c.Hyperliquid.BaseURL == "" {
		return fmt.Errorf("hyperliquid.base_url is required")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func (c *Config) HyperliquidTimeout() time.Duration {
	return time.Duration(c.Hyperliquid.TimeoutSeconds) * time.Second
}

func (c *Config) DeepSeekTimeout() time.Duration {
	return time.Duration(c.DeepSeek.TimeoutSeconds) * time.Second
}
