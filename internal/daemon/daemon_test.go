package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"newsreel/internal/daemon"
	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/queue"
	"newsreel/internal/stage"
	"newsreel/internal/testsupport"
	"newsreel/internal/workflow"
)

type noopStage struct{}

func (noopStage) Run(context.Context, *queue.Job) (stage.Result, error) {
	status, out := testsupport.SampleOutput(queue.StageScript)
	return stage.Result{Status: status, Output: out}, nil
}

func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

func newDaemon(t *testing.T) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManagerWithNotifier(cfg, store, logger, nopNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Script: noopStage{}})
	d, err := daemon.New(cfg, store, logger, mgr, nopNotifier{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.APIAddress == "" {
		t.Fatal("expected api address while running")
	}
	if len(status.Dependencies) != 2 {
		t.Fatalf("expected ffmpeg and ffprobe dependencies, got %+v", status.Dependencies)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonServesManualSubmission(t *testing.T) {
	d, store := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"title": "Live", "url": "https://example.com/live"})
	resp, err := http.Post("http://"+d.Status(ctx).APIAddress+"/api/jobs/manual", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	job, err := store.GetByURL(ctx, "https://example.com/live")
	if err != nil || job == nil {
		t.Fatalf("expected queued job, got %v (%v)", job, err)
	}
}

func TestSecondDaemonIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.API.Enabled = false
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var daemons []*daemon.Daemon
	for i := 0; i < 2; i++ {
		store := testsupport.MustOpenStore(t, cfg)
		mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), nopNotifier{})
		mgr.ConfigureStages(workflow.StageSet{Script: noopStage{}})
		d, err := daemon.New(cfg, store, logging.NewNop(), mgr, nopNotifier{})
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		t.Cleanup(d.Stop)
		daemons = append(daemons, d)
	}

	if err := daemons[0].Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := daemons[1].Start(ctx); err == nil {
		t.Fatal("expected second daemon to be locked out")
	}
}
