package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureHandler(t *testing.T) {
	t.Run("captures records and attrs", func(t *testing.T) {
		logger, h := NewTestLogger(t)

		logger.Info("cache write", slog.String("key", "19102026"))
		logger.Error("cache read failed", slog.Int("attempt", 1))

		require.Len(t, h.Records(), 2)
		assert.True(t, h.ContainsAttr("key", "19102026"))
		assert.Len(t, h.RecordsAt(slog.LevelError), 1)

		r, ok := h.Find("read failed")
		require.True(t, ok)
		assert.Equal(t, int64(1), r.Attrs["attempt"])
	})

	t.Run("derived loggers share the sink", func(t *testing.T) {
		logger, h := NewTestLogger(t)

		logger.With(slog.String("component", "offline")).Warn("stale record")

		r, ok := h.Find("stale record")
		require.True(t, ok)
		assert.Equal(t, "offline", r.Attrs["component"])
	})

	t.Run("reset", func(t *testing.T) {
		logger, h := NewTestLogger(t)
		logger.Info("one")
		h.Reset()
		assert.Empty(t, h.Records())
		AssertNoErrors(t, h)
	})
}
