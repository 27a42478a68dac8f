package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"
)

// SpanHandler is an [slog.Handler] that correlates records with the
// sampled span in their context. Records logged under an unsampled span
// carry no trace attributes, since no exported trace exists to join.
// Service, env and mode are attached once and stay top-level under WithGroup.
type SpanHandler struct {
	next slog.Handler
}

// NewSpanHandler wraps next with the service identity taken from cfg.
func NewSpanHandler(next slog.Handler, cfg Config) *SpanHandler {
	identity := []slog.Attr{
		slog.String(attrService, cfg.ServiceName),
		slog.String(attrMode, string(cfg.Mode)),
	}

	if cfg.Environment != "" {
		identity = append(identity, slog.String(attrEnv, cfg.Environment))
	}

	return &SpanHandler{next: next.WithAttrs(identity)}
}

// Enabled implements [slog.Handler].
func (h *SpanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements [slog.Handler].
func (h *SpanHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() && sc.IsSampled() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if err := h.next.Handle(ctx, record); err != nil {
		return fmt.Errorf("span handler: %w", err)
	}

	return nil
}

// WithAttrs implements [slog.Handler].
func (h *SpanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SpanHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (h *SpanHandler) WithGroup(name string) slog.Handler {
	return &SpanHandler{next: h.next.WithGroup(name)}
}

// durationAsText renders durations as "30ms" rather than integer nanoseconds
// in JSON output.
func durationAsText(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		return slog.String(a.Key, a.Value.Duration().Round(time.Microsecond).String())
	}

	return a
}

// NewLogger builds the process logger writing to w.
func NewLogger(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel, ReplaceAttr: durationAsText}

	var next slog.Handler
	if cfg.LogJSON {
		next = slog.NewJSONHandler(w, opts)
	} else {
		next = slog.NewTextHandler(w, opts)
	}

	return slog.New(NewSpanHandler(next, cfg))
}
