package genkit

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
)

const maxAttrLen = 256

// loggingSpanProcessor writes genkit spans to the debug log.
type loggingSpanProcessor struct {
	verbose bool
	logger  *slog.Logger
}

func (l *loggingSpanProcessor) OnStart(ctx context.Context, s trace.ReadWriteSpan) {
	l.logger.Debug("genkit span start", slog.String("name", s.Name()))
}

func (l *loggingSpanProcessor) OnEnd(s trace.ReadOnlySpan) {
	args := append(l.buildArgs(s), slog.Duration("elapsed", s.EndTime().Sub(s.StartTime())))
	if s.Status().Code == codes.Error {
		l.logger.Warn("genkit span failed", append(args, slog.String("status", s.Status().Description))...)
		return
	}
	l.logger.Debug("genkit span end", args...)
}

func (l *loggingSpanProcessor) Shutdown(ctx context.Context) error {
	return nil
}

func (l *loggingSpanProcessor) ForceFlush(ctx context.Context) error {
	return nil
}

var _ trace.SpanProcessor = (*loggingSpanProcessor)(nil)

func (l *loggingSpanProcessor) buildArgs(s trace.ReadOnlySpan) []any {
	args := []any{
		slog.String("name", s.Name()),
	}
	for _, attr := range s.Attributes() {
		value := attr.Value.Emit()
		if !l.verbose && len(value) > maxAttrLen {
			value = value[:maxAttrLen] + "..."
		}
		args = append(args, slog.String(string(attr.Key), value))
	}
	return args
}
