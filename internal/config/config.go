package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"RateSentinel/internal/logging"
	"RateSentinel/internal/model"
)

// PipelineConfig is a named adjuster pipeline evaluated over one data slice.
type PipelineConfig struct {
	Name string `yaml:"name"`
	// SnapshotID pins a snapshot; empty means the latest one.
	SnapshotID string            `yaml:"snapshot_id"`
	Filters    map[string]string `yaml:"filters"`
	Adjusters  model.Pipeline    `yaml:"adjusters"`
}

// Config holds all application configuration.
type Config struct {
	Backend struct {
		BaseURL string        `yaml:"base_url"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		RecalcCron string `yaml:"recalc_cron"`
		PruneCron  string `yaml:"prune_cron"`
		// RetainDays is how long run history is kept.
		RetainDays int `yaml:"retain_days"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
	Logging   logging.Config   `yaml:"logging"`
	Proxy     string           `yaml:"proxy"`
	Pipelines []PipelineConfig `yaml:"pipelines"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("RATESENTINEL_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("RATESENTINEL_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_RECALC"); v != "" {
		cfg.Schedule.RecalcCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}

	// Defaults
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Schedule.RecalcCron == "" {
		cfg.Schedule.RecalcCron = "0 0 6 * * *"
	}
	if cfg.Schedule.PruneCron == "" {
		cfg.Schedule.PruneCron = "0 30 3 * * 1"
	}
	if cfg.Schedule.RetainDays == 0 {
		cfg.Schedule.RetainDays = 90
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/ratesentinel.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	return cfg, nil
}

// Validate checks that required fields are set and every pipeline decodes.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	if c.Schedule.RetainDays < 0 {
		return fmt.Errorf("schedule.retain_days must not be negative")
	}
	seen := make(map[string]bool, len(c.Pipelines))
	for i, p := range c.Pipelines {
		if p.Name == "" {
			return fmt.Errorf("pipelines[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("pipelines[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		if _, err := p.Adjusters.Build(); err != nil {
			return fmt.Errorf("pipeline %q: %w", p.Name, err)
		}
	}
	return nil
}

// TelegramEnabled reports whether notifications should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}

// Pipeline returns the named pipeline config.
func (c *Config) Pipeline(name string) (PipelineConfig, bool) {
	for _, p := range c.Pipelines {
		if p.Name == name {
			return p, true
		}
	}
	return PipelineConfig{}, false
}
