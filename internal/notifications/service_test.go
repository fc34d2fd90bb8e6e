package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"newsreel/internal/config"
	"newsreel/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventReview, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	err := svc.Publish(context.Background(), notifications.EventFallback, notifications.Payload{"title": "Example"})
	if !errors.Is(err, notifications.ErrNotConfigured) {
		t.Fatalf("expected fallback to report ErrNotConfigured, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
		expectClick    string
	}{
		{
			name:  "needs review",
			event: notifications.EventReview,
			payload: notifications.Payload{
				"title": "Rates fall",
				"jobID": int64(7),
				"stage": "script",
				"error": "all 2 models unavailable",
			},
			expectTitle:    "Newsreel - Needs Review",
			expectMessage:  "Needs review after script retries: Rates fall (job #7)\nLast error: all 2 models unavailable",
			expectTags:     "newsreel,review",
			expectPriority: "high",
		},
		{
			name:  "failed",
			event: notifications.EventFailed,
			payload: notifications.Payload{
				"title": "Rates fall",
				"jobID": int64(7),
				"stage": "assembly",
				"kind":  "render",
				"error": "ffmpeg exited 1",
			},
			expectTitle:    "Newsreel - Failed",
			expectMessage:  "Failed at assembly: Rates fall (job #7) [render]\nffmpeg exited 1",
			expectTags:     "newsreel,failed,alert",
			expectPriority: "high",
		},
		{
			name:  "fallback",
			event: notifications.EventFallback,
			payload: notifications.Payload{
				"title":     "Rates fall",
				"jobID":     int64(7),
				"videoPath": "/data/videos/7/final.mp4",
				"shareURL":  "https://s3.example/final.mp4",
			},
			expectTitle:    "Newsreel - Manual Upload Needed",
			expectMessage:  "Upload failed for Rates fall (job #7)\nVideo: /data/videos/7/final.mp4\nDownload: https://s3.example/final.mp4",
			expectTags:     "newsreel,upload,fallback",
			expectPriority: "high",
			expectClick:    "https://s3.example/final.mp4",
		},
		{
			name:  "distributed",
			event: notifications.EventDistributed,
			payload: notifications.Payload{
				"title": "Rates fall",
				"url":   "https://www.youtube.com/shorts/abc",
			},
			expectTitle:   "Newsreel - Published",
			expectMessage: "Published: Rates fall\nhttps://www.youtube.com/shorts/abc",
			expectTags:    "newsreel,published",
			expectClick:   "https://www.youtube.com/shorts/abc",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "images (job #3)",
				"error":   errors.New("provider down"),
			},
			expectTitle:    "Newsreel - Error",
			expectMessage:  "Error with images (job #3): provider down",
			expectTags:     "newsreel,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				click    string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				captured.click = r.Header.Get("Click")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
			if captured.click != tc.expectClick {
				t.Fatalf("expected click %q, got %q", tc.expectClick, captured.click)
			}
		})
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Review = false
	cfg.Notifications.Distributed = false
	cfg.Notifications.Fallback = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventReview, notifications.EventDistributed, notifications.Event("unknown")} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"title": "ignored"}); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
	if err := svc.Publish(context.Background(), notifications.EventFallback, nil); !errors.Is(err, notifications.ErrNotConfigured) {
		t.Fatalf("expected disabled fallback to report ErrNotConfigured, got %v", err)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
