package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"newsreel/internal/config"
	"newsreel/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("disk", dir, 1); !result.Passed {
		t.Fatalf("expected pass with a one byte minimum, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("disk", dir, 1<<62); result.Passed {
		t.Fatal("expected failure for an impossible minimum")
	}
	if result := CheckFreeSpace("disk", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for a missing path")
	}
}

func TestCheckCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Script.APIKey = ""
	cfg.Images.Token = "hf"
	cfg.Storage.Enabled = true
	cfg.Distribution.Enabled = true
	cfg.Distribution.RefreshToken = "refresh"

	results := CheckCredentials(&cfg)
	failed := Failed(results)
	if len(failed) != 2 {
		t.Fatalf("expected missing api key and bucket, got %+v", failed)
	}
	if failed[0].Name != "Script API key" || !strings.Contains(failed[0].Detail, "OPENAI_API_KEY") {
		t.Fatalf("unexpected failure %+v", failed[0])
	}
	if failed[1].Name != "Storage bucket" {
		t.Fatalf("unexpected failure %+v", failed[1])
	}
}

func TestCheckLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	good := CheckLLM(context.Background(), "LLM", config.Script{APIKey: "good-key", BaseURL: srv.URL, Models: []string{"m"}})
	if !good.Passed {
		t.Fatalf("expected pass, got: %s", good.Detail)
	}
	bad := CheckLLM(context.Background(), "LLM", config.Script{APIKey: "bad-key", BaseURL: srv.URL, Models: []string{"m"}})
	if bad.Passed {
		t.Fatal("expected failure for bad key")
	}
	missing := CheckLLM(context.Background(), "LLM", config.Script{Models: []string{"m"}})
	if missing.Passed || missing.Detail != "API key missing" {
		t.Fatalf("unexpected result %+v", missing)
	}
}

func TestRunFeatureChecks_NilConfig(t *testing.T) {
	if results := RunFeatureChecks(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunFeatureChecks_Ready(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	results := RunFeatureChecks(context.Background(), cfg)
	if len(results) < 6 {
		t.Fatalf("expected directory, disk, binary, and credential checks, got %d", len(results))
	}
	for _, r := range Failed(results) {
		t.Errorf("check %q failed: %s", r.Name, r.Detail)
	}
}

func TestRunFeatureChecks_MissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	cfg.Render.FFmpegBinary = filepath.Join(t.TempDir(), "ffmpeg")

	failed := Failed(RunFeatureChecks(context.Background(), cfg))
	found := false
	for _, r := range failed {
		if r.Name == "FFmpeg" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected FFmpeg failure, got %+v", failed)
	}
}
