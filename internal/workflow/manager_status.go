package workflow

import (
	"context"

	"newsreel/internal/logging"
	"newsreel/internal/queue"
	"newsreel/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Owner       string
	LastError   string
	LastJob     *queue.Job
	LastRun     RunReport
	Runs        int
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running: m.running,
		Owner:   m.owner,
		LastRun: m.lastRun,
		Runs:    m.runCount,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		copied := *m.lastJob
		summary.LastJob = &copied
	}
	stages := make([]pipelineStage, len(m.stages))
	copy(stages, m.stages)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats

	summary.StageHealth = make(map[string]stage.Health, len(stages))
	for _, ps := range stages {
		summary.StageHealth[string(ps.stage)] = ps.executor.HealthCheck(ctx)
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job == nil {
		m.lastJob = nil
		return
	}
	copied := *job
	m.lastJob = &copied
}

func (m *Manager) recordRun(report RunReport) {
	m.mu.Lock()
	m.lastRun = report
	m.runCount++
	m.mu.Unlock()
}
