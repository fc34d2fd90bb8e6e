package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"newsreel/internal/notifications"
	"newsreel/internal/queue"
	"newsreel/internal/stage"
	"newsreel/internal/testsupport"
)

// fakeStage returns the sample output for its stage and records every job it
// ran. fail, when set, decides per attempt whether to fail instead.
type fakeStage struct {
	stage  queue.Stage
	delay  time.Duration
	health *stage.Health

	mu    sync.Mutex
	runs  map[int64]int
	fail  func(job *queue.Job, attempt int) error
	build func(job *queue.Job) (stage.Result, error)
}

func newFakeStage(stg queue.Stage) *fakeStage {
	return &fakeStage{stage: stg, runs: make(map[int64]int)}
}

func (f *fakeStage) Run(_ context.Context, job *queue.Job) (stage.Result, error) {
	f.mu.Lock()
	f.runs[job.ID]++
	attempt := f.runs[job.ID]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail != nil {
		if err := f.fail(job, attempt); err != nil {
			return stage.Result{}, err
		}
	}
	if f.build != nil {
		return f.build(job)
	}
	status, out := testsupport.SampleOutput(f.stage)
	return stage.Result{Status: status, Output: out}, nil
}

func (f *fakeStage) HealthCheck(context.Context) stage.Health {
	if f.health != nil {
		return *f.health
	}
	return stage.Healthy(string(f.stage))
}

func (f *fakeStage) count(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[id]
}

func (f *fakeStage) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.runs {
		total += n
	}
	return total
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

// stepClock is a manually advanced time source for the store.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func transientf(format string, args ...any) error {
	return fmt.Errorf("provider: "+format, args...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
