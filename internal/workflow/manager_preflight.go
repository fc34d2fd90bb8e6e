package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"newsreel/internal/logging"
	"newsreel/internal/preflight"
	"newsreel/internal/stage"
)

// startupChecks gates Start: local preflight must pass and every stage must
// be usable. Degraded stages are logged and tolerated.
func (m *Manager) startupChecks(ctx context.Context, logger *slog.Logger) error {
	var errs []error
	for _, r := range preflight.RunFeatureChecks(ctx, m.cfg) {
		if r.Passed {
			logger.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "run `newsreel check` and fix the reported item"),
		)
		errs = append(errs, fmt.Errorf("%s: %s", r.Name, r.Detail))
	}

	m.mu.RLock()
	stages := append([]pipelineStage(nil), m.stages...)
	m.mu.RUnlock()
	for _, ps := range stages {
		health := ps.executor.HealthCheck(ctx)
		switch health.State {
		case stage.StateReady:
		case stage.StateDegraded:
			logging.WarnWithContext(logger, "stage running degraded", "stage_degraded",
				logging.String(logging.FieldStage, string(ps.stage)),
				logging.String("detail", health.Detail),
			)
		default:
			errs = append(errs, fmt.Errorf("stage %s unavailable: %s", ps.stage, health.Detail))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("startup checks failed: %w", errors.Join(errs...))
	}
	return nil
}
