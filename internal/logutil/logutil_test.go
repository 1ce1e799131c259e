package logutil

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)
	logger.Log(context.Background(), LevelTrace, "batch", "index", 3)

	out := buf.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "source=logutil_test.go:")
	assert.Contains(t, out, "index=3")
}

func TestInfoLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.NotContains(t, out, "source=")
}
