package workflow

import "newsreel/internal/queue"

// ConfigureStages registers the concrete stage executors the workflow will
// run, in pipeline order.
func (m *Manager) ConfigureStages(set StageSet) {
	byStage := map[queue.Stage]pipelineStage{
		queue.StageScript:       {stage: queue.StageScript, executor: set.Script},
		queue.StageAudio:        {stage: queue.StageAudio, executor: set.Audio},
		queue.StageImages:       {stage: queue.StageImages, executor: set.Images},
		queue.StageAssembly:     {stage: queue.StageAssembly, executor: set.Assembly},
		queue.StageDistribution: {stage: queue.StageDistribution, executor: set.Distribution},
	}
	stages := make([]pipelineStage, 0, len(byStage))
	for _, stg := range queue.Stages() {
		ps := byStage[stg]
		if ps.executor == nil {
			continue
		}
		stages = append(stages, ps)
	}

	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}

func (m *Manager) configuredStages() []pipelineStage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]pipelineStage, len(m.stages))
	copy(out, m.stages)
	return out
}

func (m *Manager) policy(stg queue.Stage) queue.RetryPolicy {
	settings := m.cfg.StageSettings(string(stg))
	return queue.RetryPolicy{
		MaxRetries: settings.MaxRetries,
		BaseDelay:  m.cfg.Workflow.BackoffBase(),
		MaxDelay:   m.cfg.Workflow.BackoffMax(),
	}
}
