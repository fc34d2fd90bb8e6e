package workflow_test

import (
	"context"
	"errors"
	"testing"

	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/stage"
	"newsreel/internal/testsupport"
	"newsreel/internal/workflow"
)

func fullStageSet() (workflow.StageSet, map[queue.Stage]*fakeStage) {
	fakes := make(map[queue.Stage]*fakeStage)
	for _, stg := range queue.Stages() {
		fakes[stg] = newFakeStage(stg)
	}
	return workflow.StageSet{
		Script:       fakes[queue.StageScript],
		Audio:        fakes[queue.StageAudio],
		Images:       fakes[queue.StageImages],
		Assembly:     fakes[queue.StageAssembly],
		Distribution: fakes[queue.StageDistribution],
	}, fakes
}

func TestRunCycleRequiresStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})

	if _, err := mgr.RunCycle(context.Background()); err == nil {
		t.Fatal("expected error without configured stages")
	}
}

func TestRunCycleAdvancesThroughPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "Rates fall")
	set, fakes := fullStageSet()
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	mgr.ConfigureStages(set)

	report, err := mgr.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if report.Claimed != 5 || report.Committed != 5 {
		t.Fatalf("expected 5 claims and commits in one cycle, got %+v", report)
	}
	for _, stg := range queue.Stages() {
		if fakes[stg].count(job.ID) != 1 {
			t.Fatalf("expected %s to run once, got %d", stg, fakes[stg].count(job.ID))
		}
	}
	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != queue.StatusDistributed {
		t.Fatalf("expected distributed, got %s", stored.Status)
	}
}

func TestPartialStageSetStopsAtGap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "Partial")
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	mgr.ConfigureStages(workflow.StageSet{
		Script:   newFakeStage(queue.StageScript),
		Assembly: newFakeStage(queue.StageAssembly),
	})

	if _, err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != queue.StatusScripted {
		t.Fatalf("expected job to wait at scripted, got %s", stored.Status)
	}
}

func TestFourthTransientFailureGoesToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStageRetries(3))
	cfg.Workflow.BackoffBaseSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "Flaky")
	notifier := &recordingNotifier{}

	set, fakes := fullStageSet()
	fakes[queue.StageScript].fail = func(_ *queue.Job, attempt int) error {
		return transientf("attempt %d timed out", attempt)
	}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(set)

	report, err := mgr.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if report.Retried != 3 || report.Review != 1 {
		t.Fatalf("expected 3 retries then review, got %+v", report)
	}
	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != queue.StatusNeedsReview {
		t.Fatalf("expected needs_manual_review, got %s", stored.Status)
	}
	if stored.Retries.Script != 4 || stored.ErrorKind != services.KindTransientExternal {
		t.Fatalf("unexpected failure record %+v", stored)
	}
	if fakes[queue.StageAudio].total() != 0 {
		t.Fatal("audio must not run for a reviewed job")
	}
	if notifier.count(notifications.EventReview) != 1 {
		t.Fatalf("expected one review notification, got %v", notifier.events)
	}
}

func TestTerminalFailureIsolatesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	bad := testsupport.NewJob(t, store, "Bad")
	good := testsupport.NewJob(t, store, "Good")
	notifier := &recordingNotifier{}

	set, fakes := fullStageSet()
	fakes[queue.StageImages].fail = func(job *queue.Job, _ int) error {
		if job.ID == bad.ID {
			return services.Wrap(services.ErrAssetMissing, "images", "generate", "no prompts", nil)
		}
		return nil
	}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(set)

	if _, err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	badJob, _ := store.GetByID(context.Background(), bad.ID)
	goodJob, _ := store.GetByID(context.Background(), good.ID)
	if badJob.Status != queue.StatusFailed || badJob.FailedStage != queue.StageImages {
		t.Fatalf("expected bad job failed at images, got %s/%s", badJob.Status, badJob.FailedStage)
	}
	if goodJob.Status != queue.StatusDistributed {
		t.Fatalf("expected good job distributed, got %s", goodJob.Status)
	}
	if notifier.count(notifications.EventFailed) != 1 {
		t.Fatalf("expected one failed notification, got %v", notifier.events)
	}
}

func TestStatusReportsHealthAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, store, "Queued")
	set, _ := fullStageSet()
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	mgr.ConfigureStages(set)

	status := mgr.Status(context.Background())
	if status.Running {
		t.Fatal("expected manager idle")
	}
	if status.QueueStats[queue.StatusPending] != 1 {
		t.Fatalf("expected one pending job, got %v", status.QueueStats)
	}
	if len(status.StageHealth) != 5 || !status.StageHealth["script"].Usable() {
		t.Fatalf("unexpected stage health %v", status.StageHealth)
	}
	if status.Owner == "" || status.Owner != mgr.Owner() {
		t.Fatalf("unexpected owner %q", status.Owner)
	}
}

func TestStartRunsUntilStopped(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "Daemon")
	set, _ := fullStageSet()
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	mgr.ConfigureStages(set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := mgr.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}
	waitFor(t, func() bool {
		stored, err := store.GetByID(context.Background(), job.ID)
		return err == nil && stored.Status == queue.StatusDistributed
	})
	mgr.Stop()
	if mgr.Status(context.Background()).Running {
		t.Fatal("expected manager stopped")
	}
}

func TestStartFailsPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Render.FFmpegBinary = "/nonexistent/ffmpeg"
	store := testsupport.MustOpenStore(t, cfg)
	set, _ := fullStageSet()
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	mgr.ConfigureStages(set)

	err := mgr.Start(context.Background())
	if err == nil {
		mgr.Stop()
		t.Fatal("expected preflight failure")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestStartChecksStageHealth(t *testing.T) {
	tests := []struct {
		name    string
		health  stage.Health
		wantErr bool
	}{
		{name: "degraded distribution starts", health: stage.Degraded("distribution", "uploads disabled")},
		{name: "unavailable distribution refuses", health: stage.Unhealthy("distribution", "no sink"), wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
			if err := cfg.EnsureDirectories(); err != nil {
				t.Fatalf("EnsureDirectories failed: %v", err)
			}
			store := testsupport.MustOpenStore(t, cfg)
			set, fakes := fullStageSet()
			health := tc.health
			fakes[queue.StageDistribution].health = &health
			mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
			mgr.ConfigureStages(set)

			err := mgr.Start(context.Background())
			if err == nil {
				mgr.Stop()
			}
			if tc.wantErr && err == nil {
				t.Fatal("expected Start to refuse an unavailable stage")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Start failed: %v", err)
			}
		})
	}
}
