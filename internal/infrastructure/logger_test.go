package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/config"
)

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	cfg := config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	ctx := WithTraceID(context.Background(), "trace-123")
	logger.InfoContext(ctx, "cache write skipped", "key", "19102026")
	require.NoError(t, CloseLogFile())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "cache write skipped", entry["msg"])
	assert.Equal(t, "19102026", entry["key"])
	assert.Equal(t, "trace-123", entry["trace_id"])

	again, err := InitializeLogger(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.Same(t, logger, again, "only the first call configures the logger")
}

func TestNewLogger(t *testing.T) {
	t.Run("json with level filter", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

		logger.Info("dropped")
		logger.Warn("kept", "n", 1)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `"msg":"kept"`)
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
		logger.Info("hello", "origin", "offline")
		assert.Contains(t, buf.String(), "origin=offline")
	})

	t.Run("no trace id without context value", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggingConfig{Level: "info"}, &buf)
		logger.InfoContext(context.Background(), "plain")
		assert.NotContains(t, buf.String(), "trace_id")
	})

	t.Run("derived loggers keep trace injection", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggingConfig{Level: "info"}, &buf).With("component", "x").WithGroup("g")
		logger.InfoContext(WithTraceID(context.Background(), "abc"), "grouped")
		assert.Contains(t, buf.String(), "abc")
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestTraceIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	ctx = EnsureTraceID(ctx)
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)
	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)), "existing trace id is kept")
	assert.NotEqual(t, GenerateTraceID(), GenerateTraceID())
}

func TestLoggerWithContext(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	ctx := WithTraceID(context.Background(), "req-1")
	WithComponent(LoggerWithContext(ctx), "api").Info("handled")

	assert.Contains(t, buf.String(), `"trace_id":"req-1"`)
	assert.Contains(t, buf.String(), `"component":"api"`)
}
