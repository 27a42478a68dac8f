package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gcpacer/pkg/observability"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func handlerConfig(service, env string, mode observability.AppMode) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceName = service
	cfg.Environment = env
	cfg.Mode = mode

	return cfg
}

func spanContext(t *testing.T, flags trace.TraceFlags) context.Context {
	t.Helper()

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	return trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
	}))
}

func TestSpanHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewSpanHandler(inner, handlerConfig("pacer-svc", "test", observability.ModeRun)))

	logger.InfoContext(spanContext(t, trace.FlagsSampled), "gc collected")

	record := decodeRecord(t, &buf)

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "pacer-svc", record["service"])
	assert.Equal(t, "test", record["env"])
	assert.Equal(t, "run", record["mode"])
}

func TestSpanHandler_NoTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewSpanHandler(inner, handlerConfig("gcpacer", "", observability.ModeSimulate)))

	logger.InfoContext(context.Background(), "no span")

	record := decodeRecord(t, &buf)

	_, hasTraceID := record["trace_id"]
	assert.False(t, hasTraceID)

	_, hasEnv := record["env"]
	assert.False(t, hasEnv)

	assert.Equal(t, "simulate", record["mode"])
}

func TestSpanHandler_SkipsUnsampledSpan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewSpanHandler(inner, handlerConfig("gcpacer", "", observability.ModeRun)))

	logger.InfoContext(spanContext(t, 0), "gc collected")

	record := decodeRecord(t, &buf)

	_, hasTraceID := record["trace_id"]
	assert.False(t, hasTraceID)
	assert.Equal(t, "gcpacer", record["service"])
}

func TestSpanHandler_GroupKeepsServiceTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewSpanHandler(inner, handlerConfig("gcpacer", "", observability.ModeCLI))).
		WithGroup("gc").With(slog.String("kind", "eden"))

	logger.Info("scheduled")

	record := decodeRecord(t, &buf)

	assert.Equal(t, "gcpacer", record["service"])

	group, ok := record["gc"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "eden", group["kind"])
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.LogLevel = slog.LevelWarn

	logger := observability.NewLogger(&buf, cfg)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "gcpacer", record["service"])
}

func TestNewLogger_RendersDurationsAsText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true

	observability.NewLogger(&buf, cfg).Info("gc scheduled", slog.Duration("delay", 30*time.Millisecond))

	record := decodeRecord(t, &buf)
	assert.Equal(t, "30ms", record["delay"])
}
