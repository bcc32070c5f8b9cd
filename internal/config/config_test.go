package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "file", cfg.Progress.Backend)
	assert.Equal(t, 5, cfg.Quiz.DefaultCount)
	assert.Equal(t, 20, cfg.Quiz.MaxCount)
	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, "data/mcqs.json", cfg.MCQ.Path)
	assert.Equal(t, 10, cfg.MCQ.GenerateCount)
	assert.Empty(t, cfg.LogLevel)
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "data/flashcards.json", cfg.Decks.Path)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
env: production
server:
  port: "9090"
progress:
  backend: redis
redis:
  addr: localhost:6379
log_level: info
mcq:
  path: data/bio-mcqs.yaml
quiz:
  default_count: 8
  max_count: 12
  evaluation_timeout: 20s
`)
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Gemini.APIKey)
	assert.Equal(t, 8, cfg.Quiz.DefaultCount)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "data/bio-mcqs.yaml", cfg.MCQ.Path)
	assert.Equal(t, 20*time.Second, Duration(cfg.Quiz.EvaluationTimeout, time.Minute))
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad backend":   "progress:\n  backend: mongo\n",
		"max below def": "quiz:\n  default_count: 10\n  max_count: 3\n",
		"bad order":     "quiz:\n  order: alphabetical\n",
		"bad yaml":      "server: [",
		"unknown key":   "redis:\n  ttl: 10m\n",
		"bad log level": "log_level: loud\n",
		"too many mcqs": "mcq:\n  generate_count: 100\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("soon", time.Minute))
	assert.Equal(t, 90*time.Second, Duration("1m30s", time.Minute))
}

func TestClampCount(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5, cfg.ClampCount(0))
	assert.Equal(t, 7, cfg.ClampCount(7))
	assert.Equal(t, 20, cfg.ClampCount(50))
}
