package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"newsreel/internal/logging"
	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/stageexec"
)

// RunCycle makes one pass over the pipeline. For each stage in order it
// claims, runs, and records jobs until nothing is eligible, so a job can move
// through several stages in a single cycle. Stage failures are recorded on the
// job and do not stop the cycle; only store errors and cancellation do.
func (m *Manager) RunCycle(ctx context.Context) (CycleReport, error) {
	stages := m.configuredStages()
	if len(stages) == 0 {
		return CycleReport{}, errors.New("workflow stages not configured")
	}
	report := CycleReport{PerStage: make(map[queue.Stage]int, len(stages))}
	leaseTTL := m.cfg.Workflow.LeaseTimeoutDuration()

	reclaimed, err := m.store.ReleaseExpiredLeases(ctx, leaseTTL)
	if err != nil {
		return report, m.fail(fmt.Errorf("release expired leases: %w", err))
	}
	if reclaimed > 0 {
		m.logger.Info("released expired leases",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "lease_reclaimed"),
		)
	}
	report.Reclaimed = reclaimed

	for _, ps := range stages {
		for {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			job, err := m.store.ClaimNext(ctx, ps.stage, m.owner, leaseTTL)
			if err != nil {
				return report, m.fail(fmt.Errorf("claim %s: %w", ps.stage, err))
			}
			if job == nil {
				break
			}
			report.Claimed++
			report.PerStage[ps.stage]++

			outcome, err := m.runStage(ctx, ps, job)
			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				if errors.Is(err, queue.ErrLeaseLost) {
					continue
				}
				return report, m.fail(err)
			}
			switch {
			case outcome.Committed:
				report.Committed++
				m.setLastJob(outcome.Job)
			case outcome.Failure.Disposition == queue.DispositionRetry:
				report.Retried++
			case outcome.Failure.Disposition == queue.DispositionReview:
				report.Review++
			case outcome.Failure.Disposition == queue.DispositionFailed:
				report.Failed++
			}
		}
	}
	return report, nil
}

func (m *Manager) runStage(ctx context.Context, ps pipelineStage, job *queue.Job) (stageexec.Outcome, error) {
	name := string(ps.stage)
	stageCtx := services.WithTrace(ctx, services.Trace{RequestID: uuid.NewString()})
	settings := m.cfg.StageSettings(name)
	return stageexec.Run(stageCtx, stageexec.Options{
		Logger:              m.stageLogger(name),
		Store:               m.store,
		Notifier:            m.notifier,
		Executor:            ps.executor,
		Stage:               ps.stage,
		Owner:               m.owner,
		Job:                 job,
		Timeout:             settings.Timeout(),
		Heartbeat:           m.cfg.Workflow.HeartbeatIntervalDuration(),
		Policy:              m.policy(ps.stage),
		MalformedMaxRetries: m.cfg.Workflow.MalformedMaxRetries,
	})
}

// Run repeats cycles until one makes no progress or workflow.max_iterations
// cycles have run.
func (m *Manager) Run(ctx context.Context) (RunReport, error) {
	maxIterations := m.cfg.Workflow.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}
	var report RunReport
	started := time.Now()
	for report.Cycles < maxIterations {
		cycle, err := m.RunCycle(ctx)
		report.Cycles++
		report.Totals.add(cycle)
		if err != nil {
			m.recordRun(report)
			return report, err
		}
		if !cycle.Progressed() {
			break
		}
	}
	m.recordRun(report)
	if report.Totals.Claimed > 0 {
		m.logger.Info("workflow run complete",
			logging.String(logging.FieldEventType, "workflow_run_complete"),
			logging.Int("cycles", report.Cycles),
			logging.Int("claimed", report.Totals.Claimed),
			logging.Int("committed", report.Totals.Committed),
			logging.Int("retried", report.Totals.Retried),
			logging.Int("review", report.Totals.Review),
			logging.Int("failed", report.Totals.Failed),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	return report, nil
}

func (m *Manager) fail(err error) error {
	m.setLastError(err)
	m.logger.Error("workflow cycle aborted",
		logging.Error(err),
		logging.String(logging.FieldEventType, "workflow_cycle_failed"),
		logging.String(logging.FieldErrorHint, "check job database access"),
	)
	return err
}
