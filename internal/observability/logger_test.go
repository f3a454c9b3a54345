// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/hindsight/internal/config"
)

// -- Test Helper Functions --

// initBuffered resets the global logger and initializes it against an
// in-memory console writer.
func initBuffered(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

// -- Test Cases --

func TestIsTerminalSyncError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"EINVAL", &os.PathError{Op: "sync", Path: "/dev/stderr", Err: syscall.EINVAL}, true},
		{"ENOTTY", &os.PathError{Op: "sync", Path: "/tmp/pipe", Err: syscall.ENOTTY}, true},
		{"Disk Full", &os.PathError{Op: "sync", Path: "/var/log/hindsight.log", Err: syscall.ENOSPC}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isTerminalSyncError(tc.err))
		})
	}
}

func TestInitialize_UnknownColorIsPlain(t *testing.T) {
	buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "console", Colors: config.ColorConfig{Warn: "mauve"}})

	GetLogger().Warn("Plain level.")
	Sync()

	assert.Contains(t, buf.String(), "WARN")
	assert.NotContains(t, buf.String(), "\x1b[")
}

// The logger is a process-wide singleton, so these tests do not run in parallel.

func TestInitialize(t *testing.T) {
	t.Run("should initialize console logger with colors", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		})

		GetLogger().Named("history").Info("This is a test message.")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, "TestService.history.")
		assert.Contains(t, output, "\x1b[32mINFO\x1b[0m")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		})

		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry), "Log output should be valid JSON")
		assert.Equal(t, "warn", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("should gate console separately from the file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "hindsight.log")
		buf := initBuffered(t, config.LoggerConfig{
			Level:        "debug",
			ConsoleLevel: "warn",
			Format:       "console",
			LogFile:      logFile,
			MaxSize:      1,
		})

		GetLogger().Debug("Only in the file.")
		GetLogger().Error("Everywhere.")
		Sync()

		assert.NotContains(t, buf.String(), "Only in the file.")
		assert.Contains(t, buf.String(), "Everywhere.")

		content, err := os.ReadFile(logFile)
		require.NoError(t, err, "the log directory is created on demand")
		assert.Contains(t, string(content), "Only in the file.")
		assert.Contains(t, string(content), "Everywhere.")
	})

	t.Run("should fall back to info on an invalid level", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "loud", Format: "json"})

		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		Sync()

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "info", ServiceName: "First"})
		logger1 := GetLogger()

		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&bytes.Buffer{}))
		logger2 := GetLogger()

		assert.Equal(t, logger1, logger2)
		logger2.Info("test")
		Sync()

		assert.True(t, strings.Contains(buf.String(), "First"))
		assert.False(t, strings.Contains(buf.String(), "Second"))
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a no-op logger if not initialized", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
		assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		initBuffered(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
		assert.Equal(t, globalLogger.Load(), GetLogger())
	})
}
