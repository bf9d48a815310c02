package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextAttachesTraceFields(t *testing.T) {
	var buf bytes.Buffer
	globalLogger = slog.New(NewHandler(&buf, Config{Level: "debug", Format: "json"}))
	t.Cleanup(func() { globalLogger = nil })

	ctx := ContextWithTrace(context.Background(), "trace-1", "span-1", "req-1")
	Info(ctx, "order created", "order_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order created", entry["msg"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "span-1", entry["span_id"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.EqualValues(t, 7, entry["order_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestTraceIDEmptyWithoutValues(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
	assert.Empty(t, RequestID(context.Background()))
}
