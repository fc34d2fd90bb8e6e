package stage

import (
	"context"

	"newsreel/internal/queue"
)

// Result is what a stage hands back for commit. Status must be one of the
// stage's done statuses; Output carries only the fields the stage owns.
type Result struct {
	Status queue.Status
	Output queue.Output
}

// Executor describes the contract the workflow manager needs from each stage.
// Run must not mutate the job; the store persists the returned Result.
type Executor interface {
	Run(ctx context.Context, job *queue.Job) (Result, error)
	HealthCheck(ctx context.Context) Health
}
