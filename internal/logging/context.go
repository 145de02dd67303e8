package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one `rsextract run` invocation across its worker processes.
	FieldRunID = "run_id"
	// FieldAction is the action (dataset subdirectory) a take belongs to.
	FieldAction = "action"
	// FieldTake is the 1-based take number.
	FieldTake = "take"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

type contextKey int

const (
	runIDKey contextKey = iota
	takeKey
)

type takeRef struct {
	action string
	take   int
}

// WithRunID stores the run identifier on ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run identifier stored by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// WithTake stores the take being processed on ctx.
func WithTake(ctx context.Context, action string, take int) context.Context {
	return context.WithValue(ctx, takeKey, takeRef{action: action, take: take})
}

// TakeFromContext returns the take stored by WithTake.
func TakeFromContext(ctx context.Context) (string, int, bool) {
	if ctx == nil {
		return "", 0, false
	}
	ref, ok := ctx.Value(takeKey).(takeRef)
	return ref.action, ref.take, ok
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	fields := make([]slog.Attr, 0, 3)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if action, take, ok := TakeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAction, action), slog.Int(FieldTake, take))
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
