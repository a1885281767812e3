package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"RateSentinel/internal/model"
)

const sample = `
backend:
  base_url: "http://pricing.local"
  timeout: 5s
telegram:
  bot_token: "tok"
  chat_id: "42"
pipelines:
  - name: downtown
    filters:
      location: downtown
    adjusters:
      - type: competitive
        aggregation: avg
      - type: temporal
        granularity: weekly
        multipliers: [1, 1, 1, 1, 1.1, 1.2, 1.1]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Backend.Timeout)
	}
	if cfg.Schedule.RecalcCron != "0 0 6 * * *" || cfg.Schedule.RetainDays != 90 {
		t.Errorf("defaults not applied: %+v", cfg.Schedule)
	}
	if !cfg.TelegramEnabled() {
		t.Error("expected telegram enabled")
	}

	p, ok := cfg.Pipeline("downtown")
	if !ok {
		t.Fatal("pipeline not found")
	}
	if p.Filters["location"] != "downtown" || len(p.Adjusters) != 2 {
		t.Errorf("unexpected pipeline %+v", p)
	}
	adjs, err := p.Adjusters.Build()
	if err != nil {
		t.Fatal(err)
	}
	if comp, ok := adjs[0].(model.CompetitiveAdjuster); !ok || comp.Multiplier != 1.0 {
		t.Errorf("expected competitive with default multiplier, got %#v", adjs[0])
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RATESENTINEL_BACKEND_URL", "http://override")
	t.Setenv("CRON_RECALC", "0 */5 * * * *")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.BaseURL != "http://override" {
		t.Errorf("expected env base url, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Schedule.RecalcCron != "0 */5 * * * *" {
		t.Errorf("expected env cron, got %q", cfg.Schedule.RecalcCron)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("RATESENTINEL_BACKEND_URL", "http://env-only")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("env-only config should validate: %v", err)
	}
	if cfg.TelegramEnabled() {
		t.Error("telegram should be off without a token")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no backend", `pipelines: []`, "base_url"},
		{"token without chat", "backend: {base_url: x}\ntelegram: {bot_token: t}", "chat_id"},
		{"unnamed pipeline", "backend: {base_url: x}\npipelines: [{adjusters: []}]", "name is required"},
		{"duplicate", "backend: {base_url: x}\npipelines: [{name: a}, {name: a}]", "duplicate"},
		{"bad adjuster", "backend: {base_url: x}\npipelines: [{name: a, adjusters: [{type: competitive, aggregation: median}]}]", `pipeline "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RATESENTINEL_BACKEND_URL", "")
			cfg, err := Load(writeConfig(t, tt.body))
			if err != nil {
				t.Fatal(err)
			}
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
