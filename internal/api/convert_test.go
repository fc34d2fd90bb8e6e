package api

import (
	"testing"
	"time"

	"newsreel/internal/queue"
	"newsreel/internal/stage"
)

func TestFromJob(t *testing.T) {
	next := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := &queue.Job{
		ID:            7,
		Title:         "Rates",
		Status:        queue.StatusImagesReady,
		Script:        "one two three",
		VisualPrompts: []string{"a", "b"},
		AudioDuration: 1500 * time.Millisecond,
		Retries:       queue.Retries{Images: 2},
		NextAttemptAt: &next,
		CreatedAt:     next,
	}

	dto := FromJob(job)
	if dto.NextStage != "assembly" {
		t.Fatalf("expected next stage assembly, got %q", dto.NextStage)
	}
	if dto.Artifacts.ScriptWords != 3 || dto.Artifacts.VisualPrompts != 2 || dto.Artifacts.AudioSeconds != 1.5 {
		t.Fatalf("unexpected artifacts %+v", dto.Artifacts)
	}
	if dto.Retries.Images != 2 {
		t.Fatalf("expected images retries 2, got %d", dto.Retries.Images)
	}
	if dto.NextAttemptAt != "2026-03-01T12:00:00.000Z" || dto.CreatedAt != dto.NextAttemptAt {
		t.Fatalf("unexpected timestamps %q %q", dto.NextAttemptAt, dto.CreatedAt)
	}
	if FromJob(nil).ID != 0 {
		t.Fatal("expected zero DTO for nil job")
	}
}

func TestStageHealthSliceUsesPipelineOrder(t *testing.T) {
	health := map[string]stage.Health{
		"distribution": stage.Degraded("distribution", "uploads disabled"),
		"script":       stage.Unhealthy("script", "no key"),
		"assembly":     stage.Healthy("assembly"),
		"extra":        stage.Healthy("extra"),
	}
	got := StageHealthSlice(health)
	want := []string{"script", "assembly", "distribution", "extra"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
	if got[0].Ready || got[0].State != "unavailable" || got[0].Detail != "no key" {
		t.Fatalf("unexpected script health %+v", got[0])
	}
	if !got[2].Ready || got[2].State != "degraded" {
		t.Fatalf("expected degraded distribution to stay ready, got %+v", got[2])
	}
}

func TestMergeQueueStatsIncludesEveryStatus(t *testing.T) {
	stats := MergeQueueStats(map[queue.Status]int{queue.StatusFailed: 3})
	if len(stats) != len(queue.AllStatuses()) {
		t.Fatalf("expected every status, got %v", stats)
	}
	if stats["failed"] != 3 || stats["pending"] != 0 {
		t.Fatalf("unexpected stats %v", stats)
	}
}
