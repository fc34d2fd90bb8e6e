package distribution

import (
	"context"
	"log/slog"

	"newsreel/internal/logging"
	"newsreel/internal/notifications"
)

// Presigner returns a time-limited download link for an object key.
type Presigner interface {
	PresignURL(ctx context.Context, key string) (string, error)
}

// NtfyFallback delivers fallback notices through the notification service.
type NtfyFallback struct {
	notifier  notifications.Service
	presigner Presigner
	logger    *slog.Logger
}

// NewNtfyFallback builds the ntfy-backed fallback notifier. presigner may be
// nil when storage is disabled.
func NewNtfyFallback(notifier notifications.Service, presigner Presigner, logger *slog.Logger) *NtfyFallback {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NtfyFallback{notifier: notifier, presigner: presigner, logger: logger}
}

// NotifyFallback implements FallbackNotifier.
func (n *NtfyFallback) NotifyFallback(ctx context.Context, notice Notice) error {
	payload := notifications.Payload{
		"title":     notice.Title,
		"jobID":     notice.JobID,
		"videoPath": notice.VideoPath,
		"error":     notice.Reason,
	}
	if n.presigner != nil && notice.ObjectKey != "" {
		link, err := n.presigner.PresignURL(ctx, notice.ObjectKey)
		if err != nil {
			logging.WarnWithContext(n.logger, "presign failed; notice sent without link", "presign_failed",
				logging.Int64(logging.FieldJobID, notice.JobID),
				logging.Error(err),
			)
		} else {
			payload["shareURL"] = link
		}
	}
	return n.notifier.Publish(ctx, notifications.EventFallback, payload)
}
