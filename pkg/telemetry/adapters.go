package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter builds a logger writing to stderr so report and progress
// output on stdout stay machine-readable. Format is "json" or "text"; level
// is one of DEBUG, INFO, WARN, ERROR (case-insensitive).
func NewSlogAdapter(format, level string) *SlogAdapter {
	return NewSlogAdapterTo(os.Stderr, format, level)
}

func NewSlogAdapterTo(w io.Writer, format, level string) *SlogAdapter {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &SlogAdapter{logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogAdapter) log(ctx context.Context, fn func(context.Context, string, ...any), msg string, fields map[string]any) {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	fn(ctx, msg, args...)
}

func (l *SlogAdapter) Debug(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, l.logger.DebugContext, msg, fields)
}

func (l *SlogAdapter) Info(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, l.logger.InfoContext, msg, fields)
}

func (l *SlogAdapter) Warn(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, l.logger.WarnContext, msg, fields)
}

func (l *SlogAdapter) Error(ctx context.Context, msg string, fields map[string]any) {
	l.log(ctx, l.logger.ErrorContext, msg, fields)
}

type NoopLogger struct{}

func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (l *NoopLogger) Debug(ctx context.Context, msg string, fields map[string]any) {}
func (l *NoopLogger) Info(ctx context.Context, msg string, fields map[string]any)  {}
func (l *NoopLogger) Warn(ctx context.Context, msg string, fields map[string]any)  {}
func (l *NoopLogger) Error(ctx context.Context, msg string, fields map[string]any) {}

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (m *NoopMetrics) IncCounter(name string, value float64, labels ...Label)       {}
func (m *NoopMetrics) ObserveHistogram(name string, value float64, labels ...Label) {}
func (m *NoopMetrics) SetGauge(name string, value float64, labels ...Label)         {}
