package workflow

import (
	"newsreel/internal/queue"
	"newsreel/internal/stage"
)

// StageSet bundles the concrete stage executors the manager orchestrates.
// A nil executor leaves jobs waiting at that stage's precondition.
type StageSet struct {
	Script       stage.Executor
	Audio        stage.Executor
	Images       stage.Executor
	Assembly     stage.Executor
	Distribution stage.Executor
}

type pipelineStage struct {
	stage    queue.Stage
	executor stage.Executor
}

// CycleReport counts what one pass over the pipeline did.
type CycleReport struct {
	Claimed   int
	Committed int
	Retried   int
	Review    int
	Failed    int
	// Reclaimed counts expired leases released at the start of the cycle.
	Reclaimed int64
	// PerStage counts claims by stage.
	PerStage map[queue.Stage]int
}

// Progressed reports whether the cycle touched any job.
func (r CycleReport) Progressed() bool {
	return r.Claimed > 0
}

func (r *CycleReport) add(other CycleReport) {
	r.Claimed += other.Claimed
	r.Committed += other.Committed
	r.Retried += other.Retried
	r.Review += other.Review
	r.Failed += other.Failed
	r.Reclaimed += other.Reclaimed
	if len(other.PerStage) == 0 {
		return
	}
	if r.PerStage == nil {
		r.PerStage = make(map[queue.Stage]int, len(other.PerStage))
	}
	for stg, n := range other.PerStage {
		r.PerStage[stg] += n
	}
}

// RunReport aggregates the cycles of one Run call.
type RunReport struct {
	Cycles int
	Totals CycleReport
}
