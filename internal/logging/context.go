package logging

import (
	"context"
	"log/slog"
)

type cycleKey struct{}

// WithCycleID stores a monitor cycle identifier on ctx.
func WithCycleID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, cycleKey{}, id)
}

// CycleIDFromContext returns the cycle identifier stored by WithCycleID.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(cycleKey{}).(string)
	return id, ok && id != ""
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if id, ok := CycleIDFromContext(ctx); ok {
		return logger.With(String(FieldCycleID, id))
	}
	return logger
}
