package logging

import (
	"context"
	"log/slog"

	"newsreel/internal/config"
)

// StageLogger returns the logger to use for one pipeline stage, honouring
// logging.stage_overrides. Stages without an override log at the global level.
func StageLogger(logger *slog.Logger, cfg *config.Config, stage string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if cfg == nil {
		return logger
	}
	floor := parseLevel(cfg.Logging.Level)
	if override, ok := cfg.Logging.StageOverrides[stage]; ok {
		floor = parseLevel(override)
	}
	return slog.New(withFloor(logger.Handler(), floor))
}

// floorHandler drops records below a stage's level while the shared handler
// underneath runs at the most verbose level any stage asked for.
type floorHandler struct {
	next  slog.Handler
	floor slog.Level
}

func withFloor(next slog.Handler, floor slog.Level) slog.Handler {
	if existing, ok := next.(*floorHandler); ok {
		next = existing.next
	}
	return &floorHandler{next: next, floor: floor}
}

func (h *floorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.floor && h.next.Enabled(ctx, level)
}

func (h *floorHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.floor {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *floorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &floorHandler{next: h.next.WithAttrs(attrs), floor: h.floor}
}

func (h *floorHandler) WithGroup(name string) slog.Handler {
	return &floorHandler{next: h.next.WithGroup(name), floor: h.floor}
}
