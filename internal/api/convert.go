package api

import (
	"slices"
	"strings"
	"time"

	"newsreel/internal/queue"
	"newsreel/internal/stage"
	"newsreel/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:     job.ID,
		URL:    job.URL,
		Title:  job.Title,
		Source: job.Source,
		Status: string(job.Status),
		Retries: JobRetries{
			Script:       job.Retries.Script,
			Audio:        job.Retries.Audio,
			Images:       job.Retries.Images,
			Assembly:     job.Retries.Assembly,
			Distribution: job.Retries.Distribution,
		},
		ErrorKind:    string(job.ErrorKind),
		ErrorMessage: job.ErrorMessage,
		FailedStage:  string(job.FailedStage),
		LockedBy:     job.LockedBy,
		Artifacts: JobArtifacts{
			ScriptWords:    len(strings.Fields(job.Script)),
			VisualPrompts:  len(job.VisualPrompts),
			AudioPath:      job.AudioPath,
			AudioSeconds:   job.AudioDuration.Seconds(),
			Cues:           len(job.Cues),
			ImagePaths:     job.ImagePaths,
			VideoPath:      job.VideoPath,
			VideoObjectKey: job.VideoObjectKey,
		},
		RemoteID:          job.RemoteID,
		DistributionError: job.DistributionError,
		FallbackNotified:  job.FallbackNotified,
		CreatedAt:         FormatTime(job.CreatedAt),
		UpdatedAt:         FormatTime(job.UpdatedAt),
	}
	if next, ok := job.Status.NextStage(); ok {
		dto.NextStage = string(next)
	}
	if job.NextAttemptAt != nil {
		dto.NextAttemptAt = FormatTime(*job.NextAttemptAt)
	}
	return dto
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		Owner:       summary.Owner,
		Runs:        summary.Runs,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		LastError:   summary.LastError,
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats.
// Every known status is present so consumers can render a stable table.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice
// ordered by pipeline position.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	order := make(map[string]int)
	for i, stg := range queue.Stages() {
		order[string(stg)] = i
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		ia, aok := order[a]
		ib, bok := order[b]
		switch {
		case aok && bok:
			return ia - ib
		case aok:
			return -1
		case bok:
			return 1
		}
		return strings.Compare(a, b)
	})
	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Usable(), State: string(h.State), Detail: h.Detail})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
