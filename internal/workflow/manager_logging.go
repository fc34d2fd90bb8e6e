package workflow

import (
	"log/slog"

	"newsreel/internal/logging"
)

// stageLogger returns the base logger for a stage, honouring
// logging.stage_overrides. Job, stage, and request fields are added from the
// context by stageexec.
func (m *Manager) stageLogger(stage string) *slog.Logger {
	return logging.StageLogger(m.logger, m.cfg, stage)
}
