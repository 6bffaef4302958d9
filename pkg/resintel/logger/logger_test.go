package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{Zap: zap.New(core)}, logs
}

func TestFieldsAndError(t *testing.T) {
	log, logs := observed(zap.DebugLevel)

	log.Warn("label failed", errors.New("timeout"), map[string]interface{}{"topic": 3}, map[string]interface{}{"topic": 4, "corpus": "a"})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	assert.Equal(t, "label failed", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "timeout", ctx["error"])
	assert.Equal(t, "a", ctx["corpus"])
	assert.NotNil(t, ctx["topic"])
}

func TestLevelFiltering(t *testing.T) {
	log, logs := observed(zap.InfoLevel)
	log.Debug("hidden", nil)
	log.Info("shown", nil)
	log.Error("also shown", nil)
	assert.Equal(t, 2, logs.Len())
	assert.Empty(t, logs.FilterMessage("hidden").All())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zap.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zap.WarnLevel, parseLevel(Warning))
	assert.Equal(t, zap.ErrorLevel, parseLevel(Error))
	assert.Equal(t, zap.InfoLevel, parseLevel("verbose"))
}

func TestNewAndNop(t *testing.T) {
	log, err := New(Config{Level: Debug})
	require.NoError(t, err)
	assert.True(t, log.Zap.Core().Enabled(zap.DebugLevel))

	var nilLogger Interface
	assert.NotNil(t, OrNop(nilLogger))
	OrNop(nilLogger).Info("discarded", nil)
	assert.Same(t, log, OrNop(log))
}
