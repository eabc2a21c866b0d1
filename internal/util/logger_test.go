package util

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogger_WritesToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	var logger Logger
	err := logger.Init(LogConfig{Dir: dir, FileName: "test.log", Level: "debug"})
	require.NoError(t, err, "Init should create the folder and file")

	assert.NoError(t, logger.LogEvent("plain message"))
	assert.NoError(t, logger.LogEvent(LOG_LEVEL_ERROR, "insert failed. Err -", "boom"))
	assert.NoError(t, logger.LogEvent(LOG_LEVEL_DEBUG, "debug detail"))
	assert.NoError(t, logger.LogFields(LOG_LEVEL_WARN, "retrying", zap.Int("attempt", 2)))

	logger.DeInit()

	content, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "INFO\tplain message")
	assert.Contains(t, text, "ERROR\tinsert failed. Err - boom")
	assert.Contains(t, text, "DEBUG\tdebug detail")
	assert.Contains(t, text, `"attempt": 2`)
}

func TestLogger_LevelFilter(t *testing.T) {
	dir := t.TempDir()

	var logger Logger
	require.NoError(t, logger.Init(LogConfig{Dir: dir, FileName: "warn.log", Level: "warn"}))

	logger.LogEvent(LOG_LEVEL_INFO, "hidden")
	logger.LogEvent(LOG_LEVEL_WARN, "shown")
	logger.DeInit()

	content, err := os.ReadFile(filepath.Join(dir, "warn.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "hidden")
	assert.Contains(t, string(content), "shown")
}

func TestLogger_Uninitialized(t *testing.T) {
	var logger Logger
	assert.ErrorIs(t, logger.LogEvent("dropped"), ErrLogNotInitialized)

	var nilLogger *Logger
	assert.ErrorIs(t, nilLogger.LogEvent("dropped"), ErrLogNotInitialized)

	logger.DeInit()
}

func TestLogger_InvalidLevel(t *testing.T) {
	var logger Logger
	err := logger.Init(LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestLogger_LogAfterDeInit(t *testing.T) {
	var logger Logger
	require.NoError(t, logger.Init(LogConfig{Dir: t.TempDir(), FileName: "x.log", Level: "info"}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.LogEvent("concurrent", j)
			}
		}()
	}
	wg.Wait()
	logger.DeInit()

	assert.NotPanics(t, func() {
		assert.ErrorIs(t, logger.LogEvent("late"), ErrLogNotInitialized)
		logger.DeInit()
	})
}
