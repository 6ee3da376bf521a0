package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("ADMIN_IDS", "1, 2,,3")
	t.Setenv("EXTRACT_CACHE_TTL", "15m")
	t.Setenv("STORE_DRIVER", "JSONL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AdminIDs) != 3 || !cfg.IsAdmin(2) || cfg.IsAdmin(4) {
		t.Fatalf("admins = %v", cfg.AdminIDs)
	}
	if cfg.ExtractCacheTTL != 15*time.Minute || cfg.StoreDriver != StoreJSONL {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Generator != GeneratorDeepseek || cfg.PublishMode != "threaded" || cfg.Location() != time.UTC {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	base := Config{BotToken: "t", Generator: GeneratorDeepseek, DeepseekAPIKey: "k", StoreDriver: StoreSQLite, WeekTimezone: "UTC"}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	tests := map[string]func(c *Config){
		"no token":        func(c *Config) { c.BotToken = "" },
		"gemini no key":   func(c *Config) { c.Generator = GeneratorGemini },
		"unknown gen":     func(c *Config) { c.Generator = "gpt" },
		"unknown driver":  func(c *Config) { c.StoreDriver = "mongo" },
		"unknown tz":      func(c *Config) { c.WeekTimezone = "Mars/Olympus" },
		"deepseek no key": func(c *Config) { c.DeepseekAPIKey = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := parseIDs("1,x"); err == nil {
		t.Fatal("expected error for non-numeric admin id")
	}
}
