package logging

import (
	"context"
	"log/slog"

	"newsreel/internal/services"
)

const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldStage     = "stage"
	// FieldLeaseOwner names the worker process holding the job lease.
	FieldLeaseOwner = "lease_owner"
	// FieldCorrelationID carries the API request ID into queue log lines.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering: stage_start, stage_retry, lease_lost.
	FieldEventType = "event_type"
	// FieldErrorKind is the failure kind persisted on the job.
	FieldErrorKind = "error_kind"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldAlert     = "alert"
)

// WithContext returns logger tagged with the job, stage, lease owner and
// request ID carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	trace := services.TraceFrom(ctx)
	var args []any
	if trace.JobID != 0 {
		args = append(args, slog.Int64(FieldJobID, trace.JobID))
	}
	if trace.Stage != "" {
		args = append(args, slog.String(FieldStage, trace.Stage))
	}
	if trace.Worker != "" {
		args = append(args, slog.String(FieldLeaseOwner, trace.Worker))
	}
	if trace.RequestID != "" {
		args = append(args, slog.String(FieldCorrelationID, trace.RequestID))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}

type loggerKey struct{}

// IntoContext attaches the per-job logger to ctx so shared stage executors
// can log with it without holding per-job state.
func IntoContext(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger attached by IntoContext, or fallback tagged
// with the trace carried by ctx.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return WithContext(ctx, fallback)
}
