// Package logger builds the zap logger for the configured environment.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger for "production" and a console
// development logger otherwise. An empty level means info in production and
// warn elsewhere, so interactive commands are not interleaved with log lines.
func New(env, level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if env == "production" {
		cfg = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(levelFor(env, level))
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func levelFor(env, level string) string {
	switch {
	case level != "":
		return level
	case env == "production":
		return "info"
	default:
		return "warn"
	}
}
