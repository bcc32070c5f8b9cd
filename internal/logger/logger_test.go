package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultLevels(t *testing.T) {
	local, err := New("local", "")
	require.NoError(t, err)
	assert.False(t, local.Core().Enabled(zapcore.DebugLevel))
	assert.False(t, local.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, local.Core().Enabled(zapcore.WarnLevel))

	prod, err := New("production", "")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, prod.Core().Enabled(zapcore.InfoLevel))
}

func TestNewExplicitLevel(t *testing.T) {
	log, err := New("local", "debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	_, err = New("local", "loud")
	assert.Error(t, err)
}
