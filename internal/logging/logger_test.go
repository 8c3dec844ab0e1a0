package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, cfg Config) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	InitializeWith(zap.New(core), cfg)
	t.Cleanup(func() { InitializeWith(zap.NewNop(), Config{}) })
	return logs
}

func TestGet_DisabledWhenNotDebugMode(t *testing.T) {
	logs := observe(t, Config{DebugMode: false})

	Get(CategoryDispatch).Info("should not appear")
	DiffDebug("nor this")

	assert.Equal(t, 0, logs.Len())
	assert.False(t, IsDebugMode())
}

func TestGet_CategoryFilter(t *testing.T) {
	logs := observe(t, Config{
		DebugMode:  true,
		Categories: map[string]bool{"diff": false},
	})

	DiffDebug("filtered")
	TypesDebug("kept %d", 1)
	HooksDebug("unlisted categories default to enabled")

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "types", entries[0].LoggerName)
	assert.Equal(t, "kept 1", entries[0].Message)
	assert.Equal(t, "hooks", entries[1].LoggerName)
}

func TestGet_ReturnsCachedLogger(t *testing.T) {
	observe(t, Config{DebugMode: true})

	a := Get(CategoryInstance)
	b := Get(CategoryInstance)
	assert.Same(t, a, b)
}

func TestLogger_With(t *testing.T) {
	logs := observe(t, Config{DebugMode: true})

	Get(CategoryInstance).With("instance", "abc").Info("cloned")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "abc", entry.ContextMap()["instance"])
}

func TestTimer_StopWithThreshold(t *testing.T) {
	logs := observe(t, Config{DebugMode: true})

	timer := StartTimer(CategoryDiff, "diff")
	time.Sleep(2 * time.Millisecond)
	elapsed := timer.StopWithThreshold(time.Nanosecond)

	assert.Greater(t, elapsed, time.Duration(0))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestInitialize_NopWithoutDebugMode(t *testing.T) {
	t.Cleanup(func() { InitializeWith(zap.NewNop(), Config{}) })
	require.NoError(t, Initialize(Config{DebugMode: false}))
	assert.False(t, IsCategoryEnabled(CategoryBoot))
}
