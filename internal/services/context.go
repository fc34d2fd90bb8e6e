package services

import "context"

type traceKey struct{}

// Trace identifies the work a context belongs to. Zero fields are unset.
type Trace struct {
	JobID     int64
	Stage     string
	Worker    string // lease owner
	RequestID string
}

// WithTrace layers t over any trace already on ctx; zero fields of t keep the
// parent's value.
func WithTrace(ctx context.Context, t Trace) context.Context {
	merged := TraceFrom(ctx)
	if t.JobID != 0 {
		merged.JobID = t.JobID
	}
	if t.Stage != "" {
		merged.Stage = t.Stage
	}
	if t.Worker != "" {
		merged.Worker = t.Worker
	}
	if t.RequestID != "" {
		merged.RequestID = t.RequestID
	}
	return context.WithValue(ctx, traceKey{}, merged)
}

func TraceFrom(ctx context.Context) Trace {
	if ctx == nil {
		return Trace{}
	}
	t, _ := ctx.Value(traceKey{}).(Trace)
	return t
}
