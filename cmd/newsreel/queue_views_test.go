package main

import (
	"strings"
	"testing"

	"newsreel/internal/api"
	"newsreel/internal/config"
)

func TestFormatStatusLabel(t *testing.T) {
	tests := map[string]string{
		"pending":              "Pending",
		"audio_ready":          "Audio Ready",
		"distributed_fallback": "Distributed Fallback",
		"":                     "",
	}
	for in, want := range tests {
		if got := formatStatusLabel(in); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatNextStep(t *testing.T) {
	tests := []struct {
		name string
		job  api.Job
		want string
	}{
		{name: "leased", job: api.Job{LockedBy: "worker-a", NextStage: "audio"}, want: "running on worker-a"},
		{name: "waiting", job: api.Job{NextStage: "images"}, want: "images"},
		{name: "failed", job: api.Job{FailedStage: "assembly"}, want: "stopped at assembly"},
		{name: "done", job: api.Job{}, want: "-"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatNextStep(tc.job); got != tc.want {
				t.Fatalf("formatNextStep = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildQueueStatusRowsFollowsPipelineOrder(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"distributed": 2, "pending": 1, "scripted": 0})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Pending" || rows[2][0] != "Distributed" {
		t.Fatalf("unexpected order: %v", rows)
	}
}

func TestTruncateCellUsesDisplayWidth(t *testing.T) {
	long := strings.Repeat("新闻", 40)
	got := truncateCell(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if short := truncateCell("short"); short != "short" {
		t.Fatalf("expected short value unchanged, got %q", short)
	}
}

func TestRedactConfigHidesSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Script.APIKey = "sk-live"
	cfg.Store.Driver = config.DriverPostgres
	cfg.Store.DSN = "postgres://news:hunter2@db:5432/newsreel"

	view := redactConfig(cfg)
	if view.Script.APIKey != redacted {
		t.Fatalf("expected api key redacted, got %q", view.Script.APIKey)
	}
	if strings.Contains(view.Store.DSN, "hunter2") {
		t.Fatalf("expected dsn password redacted, got %q", view.Store.DSN)
	}
	if cfg.Script.APIKey != "sk-live" {
		t.Fatal("redaction must not mutate the caller's config")
	}
}
