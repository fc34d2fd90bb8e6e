package workflow

import (
	"context"
	"errors"

	"newsreel/internal/logging"
	"newsreel/internal/notifications"
)

// notifyError reports an infrastructure failure that stopped a cycle. Stage
// failures are reported per job by stageexec.
func (m *Manager) notifyError(ctx context.Context, label string, err error) {
	if m.notifier == nil || err == nil {
		return
	}
	if pubErr := m.notifier.Publish(ctx, notifications.EventError, notifications.Payload{
		"error":   err,
		"context": label,
	}); pubErr != nil {
		if errors.Is(pubErr, context.Canceled) {
			m.logger.Debug("shutting down, could not send error notification")
			return
		}
		m.logger.Debug("error notification failed", logging.Error(pubErr))
	}
}
