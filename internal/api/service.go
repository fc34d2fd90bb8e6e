package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"newsreel/internal/notifications"
	"newsreel/internal/queue"
)

// JobStore abstracts the queue operations the API needs.
type JobStore interface {
	Create(ctx context.Context, in queue.NewJob) (*queue.Job, error)
	GetByID(ctx context.Context, id int64) (*queue.Job, error)
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
	Resubmit(ctx context.Context, id int64, opts queue.ResubmitOptions) (*queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
}

// JobService exposes queue operations returning API DTOs. The CLI and the
// HTTP server share it.
type JobService struct {
	store    JobStore
	notifier notifications.Service
}

// NewJobService constructs a JobService around the provided store. A nil
// notifier disables the queued notification.
func NewJobService(store JobStore, notifier notifications.Service) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{store: store, notifier: notifier}
}

// Submit queues a story. Missing optional fields take the manual entry
// defaults. A URL that is already queued returns *queue.DuplicateError.
func (s *JobService) Submit(ctx context.Context, req ManualJobRequest) (Job, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Job{}, fmt.Errorf("%w: title is required", queue.ErrInvalidJob)
	}
	source := strings.TrimSpace(req.SourceName)
	if source == "" {
		source = DefaultSourceName
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = DefaultDescription
	}

	job, err := s.store.Create(ctx, queue.NewJob{
		URL:         req.URL,
		Title:       title,
		Description: description,
		Source:      source,
	})
	if err != nil {
		return Job{}, err
	}
	if s.notifier != nil {
		// Queued notices are informational; a delivery failure does not undo the submission.
		_ = s.notifier.Publish(ctx, notifications.EventJobQueued, notifications.Payload{
			"title":  job.Title,
			"jobID":  job.ID,
			"source": job.Source,
		})
	}
	return FromJob(job), nil
}

// List returns jobs filtered by status.
func (s *JobService) List(ctx context.Context, statuses ...queue.Status) ([]Job, error) {
	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Describe fetches a single job. It returns queue.ErrNotFound when no job matches.
func (s *JobService) Describe(ctx context.Context, id int64) (Job, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job == nil {
		return Job{}, queue.ErrNotFound
	}
	return FromJob(job), nil
}

// Resubmit returns a failed or reviewed job to the pipeline.
func (s *JobService) Resubmit(ctx context.Context, id int64, fromFailedStage bool) (Job, error) {
	job, err := s.store.Resubmit(ctx, id, queue.ResubmitOptions{FromFailedStage: fromFailedStage})
	if err != nil {
		return Job{}, err
	}
	return FromJob(job), nil
}

// Stats returns job counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// IsDuplicate reports whether err rejects an already queued URL.
func IsDuplicate(err error) bool {
	var dup *queue.DuplicateError
	return errors.As(err, &dup)
}
