package logging

import (
	"context"
	"log/slog"

	"mmproteo/internal/services"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldStage is the structured logging key for stage names.
	FieldStage = "stage"
	// FieldCorrelationID is the structured logging key for the per-run identifier.
	FieldCorrelationID = "correlation_id"
	// FieldCommand is the structured logging key for command names.
	FieldCommand = "command"
	// FieldFile is the structured logging key for the file a message concerns.
	FieldFile = "file"
	// FieldEventType classifies warnings and errors.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
