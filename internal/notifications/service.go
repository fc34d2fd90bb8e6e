package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsreel/internal/config"
)

const userAgent = "Newsreel-Go/0.1.0"

// ErrNotConfigured is returned for events that must be delivered when no
// transport is available for them.
var ErrNotConfigured = errors.New("notifications not configured")

// Event identifies a notification type.
type Event string

const (
	EventJobQueued   Event = "job_queued"
	EventReview      Event = "needs_review"
	EventFailed      Event = "failed"
	EventFallback    Event = "fallback"
	EventDistributed Event = "distributed"
	EventError       Event = "error"
	EventTest        Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventJobQueued:   true,
			EventReview:      cfg.Notifications.Review,
			EventFailed:      cfg.Notifications.Errors,
			EventError:       cfg.Notifications.Errors,
			EventFallback:    cfg.Notifications.Fallback,
			EventDistributed: cfg.Notifications.Distributed,
			EventTest:        true,
		},
	}
}

// mustDeliver reports whether a skipped event is an error for the caller.
func mustDeliver(event Event) bool {
	return event == EventFallback
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	click    string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil {
		return nil
	}
	if !n.enabled[event] {
		if mustDeliver(event) {
			return fmt.Errorf("%s: %w (disabled in config)", event, ErrNotConfigured)
		}
		return nil
	}
	msg, ok := buildPayload(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func buildPayload(event Event, data Payload) (payload, bool) {
	title := payloadString(data, "title")
	jobID := payloadInt64(data, "jobID")
	label := title
	if jobID > 0 {
		label = fmt.Sprintf("%s (job #%d)", title, jobID)
	}
	switch event {
	case EventJobQueued:
		return payload{
			title:   "Newsreel - Job Queued",
			message: fmt.Sprintf("Queued: %s", label),
			tags:    []string{"newsreel", "queue", "added"},
		}, true
	case EventReview:
		message := fmt.Sprintf("Needs review after %s retries: %s", orUnknown(payloadString(data, "stage")), label)
		if reason := payloadString(data, "error"); reason != "" {
			message += "\nLast error: " + reason
		}
		return payload{
			title:    "Newsreel - Needs Review",
			message:  message,
			tags:     []string{"newsreel", "review"},
			priority: "high",
		}, true
	case EventFailed:
		message := fmt.Sprintf("Failed at %s: %s", orUnknown(payloadString(data, "stage")), label)
		if kind := payloadString(data, "kind"); kind != "" {
			message += fmt.Sprintf(" [%s]", kind)
		}
		if reason := payloadString(data, "error"); reason != "" {
			message += "\n" + reason
		}
		return payload{
			title:    "Newsreel - Failed",
			message:  message,
			tags:     []string{"newsreel", "failed", "alert"},
			priority: "high",
		}, true
	case EventFallback:
		message := fmt.Sprintf("Upload failed for %s\nVideo: %s", label, payloadString(data, "videoPath"))
		link := payloadString(data, "shareURL")
		if link != "" {
			message += "\nDownload: " + link
		}
		if reason := payloadString(data, "error"); reason != "" {
			message += "\nReason: " + reason
		}
		return payload{
			title:    "Newsreel - Manual Upload Needed",
			message:  message,
			tags:     []string{"newsreel", "upload", "fallback"},
			priority: "high",
			click:    link,
		}, true
	case EventDistributed:
		link := payloadString(data, "url")
		message := fmt.Sprintf("Published: %s", label)
		if link != "" {
			message += "\n" + link
		}
		return payload{
			title:   "Newsreel - Published",
			message: message,
			tags:    []string{"newsreel", "published"},
			click:   link,
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if ctxLabel := payloadString(data, "context"); ctxLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(ctxLabel)
		}
		builder.WriteString(": ")
		if err, ok := data["error"].(error); ok && err != nil {
			builder.WriteString(strings.TrimSpace(err.Error()))
		} else if text := payloadString(data, "error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "Newsreel - Error",
			message:  builder.String(),
			tags:     []string{"newsreel", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Newsreel - Test",
			message:  "Notification system test",
			tags:     []string{"newsreel", "test"},
			priority: "low",
		}, true
	}
	return payload{}, false
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	if data.click != "" {
		req.Header.Set("Click", data.click)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func payloadString(data Payload, key string) string {
	if data == nil {
		return ""
	}
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadInt64(data Payload, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown stage"
	}
	return value
}

type noopService struct{}

func (noopService) Publish(_ context.Context, event Event, _ Payload) error {
	if mustDeliver(event) {
		return fmt.Errorf("%s: %w", event, ErrNotConfigured)
	}
	return nil
}
