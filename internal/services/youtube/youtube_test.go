package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/api/option"

	"newsreel/internal/services"
)

func newTestUploader(t *testing.T, handler http.HandlerFunc) *Uploader {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	uploader, err := NewWithOptions(context.Background(),
		Config{Privacy: "private", CategoryID: "25", Tags: []string{"news", "shorts"}},
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewWithOptions failed: %v", err)
	}
	return uploader
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, []byte("fake-mp4"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return path
}

func TestUpload(t *testing.T) {
	var body string
	uploader := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, "videos") {
			http.Error(w, "unexpected request", http.StatusNotFound)
			return
		}
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "yt-abc"})
	})

	id, err := uploader.Upload(context.Background(), writeVideo(t), Metadata{
		Title:       strings.Repeat("t", 150),
		Description: "desc",
		Tags:        []string{"Shorts", "economy"},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if id != "yt-abc" {
		t.Fatalf("unexpected id %q", id)
	}
	if !strings.Contains(body, "fake-mp4") {
		t.Fatalf("media not sent in body")
	}
	if !strings.Contains(body, `"privacyStatus":"private"`) {
		t.Fatalf("status not sent: %s", body)
	}
	if strings.Contains(body, strings.Repeat("t", 101)) {
		t.Fatalf("title was not truncated")
	}
}

func TestUploadFailureIsUploadError(t *testing.T) {
	uploader := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`))
	})
	_, err := uploader.Upload(context.Background(), writeVideo(t), Metadata{Title: "x"})
	if !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected upload error, got %v", err)
	}
	details := services.Details(err)
	if details.Hint == "" {
		t.Fatalf("expected a hint on forbidden uploads")
	}
}

func TestUploadMissingFile(t *testing.T) {
	uploader := newTestUploader(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	_, err := uploader.Upload(context.Background(), filepath.Join(t.TempDir(), "none.mp4"), Metadata{Title: "x"})
	if !errors.Is(err, services.ErrAssetMissing) {
		t.Fatalf("expected asset missing, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMergeTags(t *testing.T) {
	got := mergeTags([]string{"news", "shorts"}, []string{"Shorts", " economy ", ""})
	want := []string{"news", "shorts", "economy"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("mergeTags = %v, want %v", got, want)
	}
}
