package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string `yaml:"env" validate:"oneof=local development production"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Profile  string `yaml:"profile" validate:"required"`
	Server   struct {
		Port string `yaml:"port" validate:"required,numeric"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"min=0"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Decks struct {
		Backend  string `yaml:"backend" validate:"oneof=file postgres"`
		Path     string `yaml:"path" validate:"required"`
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"decks"`
	Progress struct {
		Backend    string `yaml:"backend" validate:"oneof=file redis postgres sqlite memory"`
		Path       string `yaml:"path"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"progress"`
	MCQ struct {
		Path          string `yaml:"path" validate:"required"`
		GenerateCount int    `yaml:"generate_count" validate:"min=1,max=50"`
	} `yaml:"mcq"`
	Quiz struct {
		DefaultCount      int    `yaml:"default_count" validate:"min=1"`
		MaxCount          int    `yaml:"max_count" validate:"gtefield=DefaultCount"`
		Order             string `yaml:"order" validate:"omitempty,oneof=sequential random"`
		EvaluationTimeout string `yaml:"evaluation_timeout"`
		SessionTTL        string `yaml:"session_ttl"`
	} `yaml:"quiz"`
	Gemini struct {
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		MaxRetries int    `yaml:"max_retries" validate:"min=0,max=10"`
		BaseDelay  string `yaml:"base_delay"`
	} `yaml:"gemini"`
}

// Load reads YAML config from path, then .env and environment overrides.
// A missing file leaves the defaults in place; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Validate checks the struct tags.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MEMORY_PALACE_PROFILE"); v != "" {
		cfg.Profile = v
	}
	if v := os.Getenv("QUIZ_DEFAULT_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Quiz.DefaultCount = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "local"
	}
	if cfg.Profile == "" {
		cfg.Profile = "default"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Decks.Backend == "" {
		cfg.Decks.Backend = "file"
	}
	if cfg.Decks.Path == "" {
		cfg.Decks.Path = "data/flashcards.json"
	}
	if cfg.Progress.Backend == "" {
		cfg.Progress.Backend = "file"
	}
	if cfg.Progress.Path == "" {
		cfg.Progress.Path = "data/progress.json"
	}
	if cfg.Progress.SQLitePath == "" {
		cfg.Progress.SQLitePath = "data/progress.db"
	}
	if cfg.MCQ.Path == "" {
		cfg.MCQ.Path = "data/mcqs.json"
	}
	if cfg.MCQ.GenerateCount == 0 {
		cfg.MCQ.GenerateCount = 10
	}
	if cfg.Quiz.DefaultCount == 0 {
		cfg.Quiz.DefaultCount = 5
	}
	if cfg.Quiz.MaxCount == 0 {
		cfg.Quiz.MaxCount = 20
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.5-flash"
	}
}

// Duration parses a duration string or returns the fallback if empty.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// ClampCount applies the quiz defaults to a requested question count:
// non-positive means the default, anything above the maximum is capped.
func (c Config) ClampCount(requested int) int {
	if requested <= 0 {
		requested = c.Quiz.DefaultCount
	}
	if requested > c.Quiz.MaxCount {
		return c.Quiz.MaxCount
	}
	return requested
}
