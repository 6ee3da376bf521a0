package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Generator names accepted in GENERATOR.
const (
	GeneratorDeepseek = "deepseek"
	GeneratorGemini   = "gemini"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreSQLite = "sqlite"
	StoreJSONL  = "jsonl"
)

// Config holds all the configuration for the application
type Config struct {
	BotToken     string
	TargetChatID string
	AdminIDs     []int64

	DatabasePath     string
	StoreDriver      string
	ResponsesLogPath string

	Generator      string
	DeepseekAPIKey string
	DeepseekURL    string
	DeepseekModel  string
	GeminiAPIKey   string
	GeminiModel    string

	TTSAPIKey string
	TTSURL    string
	TTSModel  string
	TTSVoice  string

	AudioDir        string
	AudioPublicPath string

	JudgeURL string

	ExtractCacheEnabled bool
	ExtractCacheTTL     time.Duration
	RedisAddr           string

	EnrichConcurrency int
	PublishMode       string
	ServerPort        string
	APIToken          string
	LogMode           string
	WeekTimezone      string
}

// Load loads the configuration from an optional .env file and the environment
func Load() (*Config, error) {
	// A missing .env is the normal production case.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		BotToken:            v.GetString("BOT_TOKEN"),
		TargetChatID:        v.GetString("TARGET_CHAT_ID"),
		DatabasePath:        v.GetString("DB_PATH"),
		StoreDriver:         strings.ToLower(v.GetString("STORE_DRIVER")),
		ResponsesLogPath:    v.GetString("RESPONSES_LOG_PATH"),
		Generator:           strings.ToLower(v.GetString("GENERATOR")),
		DeepseekAPIKey:      v.GetString("DEEPSEEK_API_KEY"),
		DeepseekURL:         v.GetString("DEEPSEEK_URL"),
		DeepseekModel:       v.GetString("DEEPSEEK_MODEL"),
		GeminiAPIKey:        v.GetString("GEMINI_API_KEY"),
		GeminiModel:         v.GetString("GEMINI_MODEL"),
		TTSAPIKey:           v.GetString("TTS_API_KEY"),
		TTSURL:              v.GetString("TTS_URL"),
		TTSModel:            v.GetString("TTS_MODEL"),
		TTSVoice:            v.GetString("TTS_VOICE"),
		AudioDir:            v.GetString("AUDIO_DIR"),
		AudioPublicPath:     v.GetString("AUDIO_PUBLIC_PATH"),
		JudgeURL:            v.GetString("JUDGE_URL"),
		ExtractCacheEnabled: v.GetBool("EXTRACT_CACHE_ENABLED"),
		ExtractCacheTTL:     v.GetDuration("EXTRACT_CACHE_TTL"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		EnrichConcurrency:   v.GetInt("ENRICH_CONCURRENCY"),
		PublishMode:         strings.ToLower(v.GetString("PUBLISH_MODE")),
		ServerPort:          v.GetString("SERVER_PORT"),
		APIToken:            v.GetString("API_TOKEN"),
		LogMode:             v.GetString("LOG_MODE"),
		WeekTimezone:        v.GetString("WEEK_TIMEZONE"),
	}

	adminIDs, err := parseIDs(v.GetString("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}
	cfg.AdminIDs = adminIDs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN environment variable is required")
	}
	switch c.Generator {
	case GeneratorDeepseek:
		if c.DeepseekAPIKey == "" {
			return errors.New("DEEPSEEK_API_KEY environment variable is required")
		}
	case GeneratorGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY environment variable is required")
		}
	default:
		return fmt.Errorf("unknown GENERATOR %q", c.Generator)
	}
	switch c.StoreDriver {
	case StoreSQLite, StoreJSONL:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if _, err := time.LoadLocation(c.WeekTimezone); err != nil {
		return fmt.Errorf("WEEK_TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the time zone used for week buckets.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.WeekTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsAdmin reports whether the Telegram user may submit content for publishing.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_PATH", "./data/newsdigest.db")
	v.SetDefault("STORE_DRIVER", StoreSQLite)
	v.SetDefault("RESPONSES_LOG_PATH", "./data/responses.jsonl")
	v.SetDefault("GENERATOR", GeneratorDeepseek)
	v.SetDefault("DEEPSEEK_URL", "https://api.deepseek.com/v1/chat/completions")
	v.SetDefault("DEEPSEEK_MODEL", "deepseek-chat")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("TTS_URL", "https://api.openai.com/v1/audio/speech")
	v.SetDefault("TTS_MODEL", "tts-1")
	v.SetDefault("TTS_VOICE", "alloy")
	v.SetDefault("AUDIO_DIR", "./data/audio")
	v.SetDefault("AUDIO_PUBLIC_PATH", "/audio")
	v.SetDefault("EXTRACT_CACHE_ENABLED", false)
	v.SetDefault("EXTRACT_CACHE_TTL", "1h")
	v.SetDefault("ENRICH_CONCURRENCY", 0)
	v.SetDefault("PUBLISH_MODE", "threaded")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("WEEK_TIMEZONE", "UTC")
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
