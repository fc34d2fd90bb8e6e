package testsupport

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"newsreel/internal/config"
	"newsreel/internal/queue"
)

var jobSeq atomic.Int64

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending job with a unique URL.
func NewJob(t testing.TB, store *queue.Store, title string) *queue.Job {
	t.Helper()

	job, err := store.Create(context.Background(), queue.NewJob{
		URL:         fmt.Sprintf("https://news.example.com/articles/%d", jobSeq.Add(1)),
		Title:       title,
		Description: title + " description",
		Source:      "Test Wire",
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}

// AdvanceTo drives a job through stage commits, starting at the stage its
// status awaits, until it reaches the precondition of target. Each stage
// commits SampleOutput.
func AdvanceTo(t testing.TB, store *queue.Store, job *queue.Job, target queue.Stage) *queue.Job {
	t.Helper()

	ctx := context.Background()
	current := job
	next, ok := current.Status.NextStage()
	if !ok {
		t.Fatalf("job %d in status %s awaits no stage", current.ID, current.Status)
	}
	started := false
	for _, stage := range queue.Stages() {
		if stage == next {
			started = true
		}
		if !started {
			if stage == target {
				t.Fatalf("job %d in status %s is already past %s", current.ID, current.Status, target)
			}
			continue
		}
		if stage == target {
			return current
		}
		claimed, err := store.ClaimNext(ctx, stage, "testsupport", 0)
		if err != nil {
			t.Fatalf("ClaimNext(%s): %v", stage, err)
		}
		if claimed == nil || claimed.ID != current.ID {
			t.Fatalf("ClaimNext(%s) returned %#v, want job %d", stage, claimed, current.ID)
		}
		status, out := SampleOutput(stage)
		current, err = store.Commit(ctx, claimed.ID, "testsupport", status, out)
		if err != nil {
			t.Fatalf("Commit(%s): %v", stage, err)
		}
	}
	return current
}
