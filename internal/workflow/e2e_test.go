package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"newsreel/internal/config"
	"newsreel/internal/distribution"
	"newsreel/internal/logging"
	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/services/youtube"
	"newsreel/internal/stage"
	"newsreel/internal/testsupport"
	"newsreel/internal/workflow"
)

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSink) Upload(context.Context, string, youtube.Metadata) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return "", services.Wrap(services.ErrUpload, "distribution", "upload", "quota exceeded", errors.New("403"))
}

type recordingFallback struct {
	mu      sync.Mutex
	notices []distribution.Notice
}

func (r *recordingFallback) NotifyFallback(_ context.Context, notice distribution.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
	return nil
}

func TestPipelineRetriesThenFallsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Distribution.FallbackPolicy = config.FallbackFireAndForget
	store := testsupport.MustOpenStore(t, cfg)
	clock := newStepClock()
	store.SetClock(clock.Now)
	job := testsupport.NewJob(t, store, "Storm warning")
	notifier := &recordingNotifier{}

	set, fakes := fullStageSet()
	fakes[queue.StageScript].fail = func(_ *queue.Job, attempt int) error {
		if attempt <= 2 {
			return transientf("503 on attempt %d", attempt)
		}
		return nil
	}
	videoPath := filepath.Join(cfg.JobAssetDir("videos", job.ID), "final.mp4")
	fakes[queue.StageAssembly].build = func(*queue.Job) (stage.Result, error) {
		testsupport.WriteFile(t, videoPath, []byte("mp4 bytes"))
		return stage.Result{Status: queue.StatusAssembled, Output: queue.Output{VideoPath: videoPath}}, nil
	}
	sink := &failingSink{}
	fallback := &recordingFallback{}
	set.Distribution = distribution.New(sink, fallback, notifier, distribution.Options{Policy: cfg.Distribution.FallbackPolicy})

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(set)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := mgr.Run(ctx); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
		clock.Advance(time.Minute)
	}

	stored, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != queue.StatusDistributedFallback {
		t.Fatalf("expected distributed_fallback, got %s (%s)", stored.Status, stored.ErrorMessage)
	}
	if stored.Retries.Script != 2 {
		t.Fatalf("expected two script retries, got %d", stored.Retries.Script)
	}
	if fakes[queue.StageScript].count(job.ID) != 3 {
		t.Fatalf("expected three script attempts, got %d", fakes[queue.StageScript].count(job.ID))
	}
	if stored.VideoPath != videoPath || !stored.FallbackNotified || stored.DistributionError == "" {
		t.Fatalf("unexpected fallback record %+v", stored)
	}
	if stored.LockedBy != "" {
		t.Fatalf("expected lease released, held by %q", stored.LockedBy)
	}
	if sink.calls != 1 {
		t.Fatalf("expected one upload attempt under fire_and_forget, got %d", sink.calls)
	}
	if len(fallback.notices) != 1 {
		t.Fatalf("expected exactly one fallback notice, got %d", len(fallback.notices))
	}
	notice := fallback.notices[0]
	if notice.JobID != job.ID || notice.VideoPath != videoPath {
		t.Fatalf("unexpected notice %+v", notice)
	}

	// The job is final; further cycles must leave it alone.
	report, err := mgr.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Totals.Claimed != 0 || len(fallback.notices) != 1 {
		t.Fatalf("expected idle cycle, got %+v", report.Totals)
	}
}

// countingStage asserts that no (stage, job) pair runs twice across workers.
type countingStage struct {
	stage queue.Stage

	mu   sync.Mutex
	seen map[int64]string
	dup  []string
}

func (c *countingStage) Run(ctx context.Context, job *queue.Job) (stage.Result, error) {
	owner := services.TraceFrom(ctx).Worker
	c.mu.Lock()
	if prev, ok := c.seen[job.ID]; ok {
		c.dup = append(c.dup, fmt.Sprintf("%s job %d by %s and %s", c.stage, job.ID, prev, owner))
	}
	c.seen[job.ID] = owner
	c.mu.Unlock()

	time.Sleep(2 * time.Millisecond)
	status, out := testsupport.SampleOutput(c.stage)
	return stage.Result{Status: status, Output: out}, nil
}

func (c *countingStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(string(c.stage))
}

func TestConcurrentWorkersNeverShareAJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	primary := testsupport.MustOpenStore(t, cfg)
	secondary := testsupport.MustOpenStore(t, cfg)

	const jobs = 10
	for i := 0; i < jobs; i++ {
		testsupport.NewJob(t, primary, fmt.Sprintf("Story %d", i))
	}

	counters := make(map[queue.Stage]*countingStage)
	for _, stg := range queue.Stages() {
		counters[stg] = &countingStage{stage: stg, seen: make(map[int64]string)}
	}
	set := workflow.StageSet{
		Script:       counters[queue.StageScript],
		Audio:        counters[queue.StageAudio],
		Images:       counters[queue.StageImages],
		Assembly:     counters[queue.StageAssembly],
		Distribution: counters[queue.StageDistribution],
	}

	a := workflow.NewManager(cfg, primary, logging.NewNop(), workflow.WithOwner("worker-a"), workflow.WithNotifier(&recordingNotifier{}))
	b := workflow.NewManager(cfg, secondary, logging.NewNop(), workflow.WithOwner("worker-b"), workflow.WithNotifier(&recordingNotifier{}))
	a.ConfigureStages(set)
	b.ConfigureStages(set)

	var g errgroup.Group
	for _, mgr := range []*workflow.Manager{a, b} {
		g.Go(func() error {
			_, err := mgr.Run(context.Background())
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Run failed: %v", err)
	}
	// A worker can stop while the other is mid-pipeline; drain what is left.
	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("drain Run failed: %v", err)
	}

	for _, stg := range queue.Stages() {
		c := counters[stg]
		if len(c.dup) > 0 {
			t.Fatalf("duplicate processing: %v", c.dup)
		}
		if len(c.seen) != jobs {
			t.Fatalf("expected %s to process %d jobs, got %d", stg, jobs, len(c.seen))
		}
	}
	stats, err := primary.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusDistributed] != jobs {
		t.Fatalf("expected all jobs distributed, got %v", stats)
	}
}
