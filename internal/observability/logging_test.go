package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestTraceContextHandler(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, "debug")

	ctx := WithJobID(WithRequestID(context.Background(), "req-1"), 42)
	logger.InfoContext(ctx, "embedding: done", "video_id", "v1")

	out := buf.String()
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "job_id=42")
	assert.Contains(t, out, "video_id=v1")
	assert.NotContains(t, out, "trace_id")

	buf.Reset()
	NewLogger(&buf, "warn").Info("dropped")
	assert.Empty(t, buf.String())
}

func TestRequestIDFrom(t *testing.T) {
	assert.Empty(t, RequestIDFrom(context.Background()))
	assert.Equal(t, "abc", RequestIDFrom(WithRequestID(context.Background(), "abc")))
}
