package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Commit records a stage's output and advances the job to status. Only the
// stage whose done set contains status may commit, only while it holds the
// lease, and only the columns that stage owns are written. Committing clears
// the lease along with any recorded error.
func (s *Store) Commit(ctx context.Context, id int64, owner string, status Status, out Output) (*Job, error) {
	spec, ok := stageCommitting(status)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a stage output status", ErrInvalidTransition, status)
	}
	if err := validateOutput(spec.stage, status, out); err != nil {
		return nil, err
	}
	assignments, args, err := outputAssignments(spec.stage, out)
	if err != nil {
		return nil, err
	}

	query := `UPDATE jobs SET status = ?, ` + strings.Join(assignments, ", ") + `,
            locked_by = NULL, locked_at = NULL, error_kind = NULL, error_message = NULL,
            failed_stage = NULL, next_attempt_at = NULL, updated_at = ?
        WHERE id = ? AND status = ? AND locked_by = ?
        RETURNING ` + jobColumns
	params := make([]any, 0, len(args)+5)
	params = append(params, status)
	params = append(params, args...)
	params = append(params, s.timestamp(), id, spec.precondition, owner)

	job, err := s.queryJobWithRetry(ctx, query, params...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.explainMiss(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", spec.stage, err)
	}
	return job, nil
}

// Fail records a stage failure for a job owner holds. Retryable failures bump
// the stage counter and schedule the next attempt after the policy's backoff;
// once the counter exceeds MaxRetries the job moves to needs_manual_review.
// Terminal failures move the job to failed immediately.
func (s *Store) Fail(ctx context.Context, id int64, owner string, stage Stage, failure Failure) (FailResult, error) {
	spec, ok := lookupStage(stage)
	if !ok {
		return FailResult{}, fmt.Errorf("record failure: unknown stage %q", stage)
	}
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return FailResult{}, err
	}
	if job == nil {
		return FailResult{}, ErrNotFound
	}
	if job.Status != spec.precondition || job.LockedBy != owner {
		return FailResult{}, ErrLeaseLost
	}

	previous := job.Retries.For(stage)
	attempts := previous + 1
	now := s.now()
	result := FailResult{Attempts: attempts}

	message := strings.TrimSpace(failure.Message)
	if message == "" {
		message = "stage failed"
	}
	var nextAttempt any
	status := spec.precondition
	switch {
	case failure.Terminal:
		status = StatusFailed
		result.Disposition = DispositionFailed
	case attempts > failure.Policy.MaxRetries:
		status = StatusNeedsReview
		result.Disposition = DispositionReview
	default:
		result.Disposition = DispositionRetry
		result.NextAttemptAt = now.Add(failure.Policy.Delay(attempts))
		nextAttempt = formatTime(result.NextAttemptAt)
	}
	result.Status = status

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, `+spec.retryColumn+` = ?, error_kind = ?, error_message = ?,
            failed_stage = ?, next_attempt_at = ?, locked_by = NULL, locked_at = NULL, updated_at = ?
        WHERE id = ? AND status = ? AND locked_by = ? AND `+spec.retryColumn+` = ?`,
		status,
		attempts,
		nullableString(string(failure.Kind)),
		message,
		stage,
		nextAttempt,
		formatTime(now),
		id,
		spec.precondition,
		owner,
		previous,
	)
	if err != nil {
		return FailResult{}, fmt.Errorf("record failure: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return FailResult{}, err
	}
	return result, nil
}

// Resubmit returns a failed or reviewed job to the pipeline. By default the job
// restarts at pending; with FromFailedStage it resumes at the stage that
// failed. Counters, errors, leases, and backoff are cleared, as are the outputs
// of every stage that will run again.
func (s *Store) Resubmit(ctx context.Context, id int64, opts ResubmitOptions) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	if job.Status != StatusFailed && job.Status != StatusNeedsReview {
		return nil, fmt.Errorf("%w: job %d is %s; only failed or review jobs can be resubmitted", ErrInvalidTransition, id, job.Status)
	}

	from := StageScript
	if opts.FromFailedStage {
		if _, ok := lookupStage(job.FailedStage); ok {
			from = job.FailedStage
		}
	}

	assignments := []string{
		"status = ?",
		"script_retries = 0", "audio_retries = 0", "images_retries = 0",
		"assembly_retries = 0", "distribution_retries = 0",
		"error_kind = NULL", "error_message = NULL", "failed_stage = NULL",
		"next_attempt_at = NULL", "locked_by = NULL", "locked_at = NULL",
		"updated_at = ?",
	}
	assignments = append(assignments, clearedColumns(from)...)

	updated, err := s.queryJobWithRetry(
		ctx,
		`UPDATE jobs SET `+strings.Join(assignments, ", ")+`
        WHERE id = ? AND status IN (?, ?)
        RETURNING `+jobColumns,
		from.Precondition(),
		s.timestamp(),
		id,
		StatusFailed,
		StatusNeedsReview,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %d changed during resubmit", ErrInvalidTransition, id)
	}
	if err != nil {
		return nil, fmt.Errorf("resubmit job: %w", err)
	}
	return updated, nil
}

// explainMiss classifies a guarded commit that matched no row. A row that
// vanished mid-stage is a lost lease too, so the worker drops the job instead
// of aborting its cycle.
func (s *Store) explainMiss(ctx context.Context, id int64) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: job %d no longer exists", ErrLeaseLost, id)
	}
	return ErrLeaseLost
}

// validateOutput rejects outputs that carry another stage's fields or lack
// the fields the committing stage must produce.
func validateOutput(stage Stage, status Status, out Output) error {
	for _, owner := range populatedStages(out) {
		if owner != stage {
			return fmt.Errorf("%w: %s output sets %s fields", ErrInvalidTransition, stage, owner)
		}
	}
	missing := func(field string) error {
		return fmt.Errorf("%w: %s output missing %s", ErrInvalidTransition, stage, field)
	}
	switch stage {
	case StageScript:
		if strings.TrimSpace(out.Script) == "" {
			return missing("script")
		}
		if len(out.VisualPrompts) == 0 {
			return missing("visual prompts")
		}
	case StageAudio:
		if out.AudioPath == "" {
			return missing("audio path")
		}
		if out.AudioDuration <= 0 {
			return missing("audio duration")
		}
		if len(out.Cues) == 0 {
			return missing("subtitle cues")
		}
	case StageImages:
		if len(out.ImagePaths) == 0 {
			return missing("image paths")
		}
	case StageAssembly:
		if out.VideoPath == "" {
			return missing("video path")
		}
	case StageDistribution:
		switch status {
		case StatusDistributed:
			if out.RemoteID == "" {
				return missing("remote id")
			}
			if out.FallbackNotified {
				return fmt.Errorf("%w: fallback flag set on a direct upload", ErrInvalidTransition)
			}
		case StatusDistributedFallback:
			if out.DistributionError == "" {
				return missing("distribution error")
			}
		}
	}
	return nil
}

func populatedStages(out Output) []Stage {
	var stages []Stage
	if out.Script != "" || len(out.VisualPrompts) > 0 {
		stages = append(stages, StageScript)
	}
	if out.AudioPath != "" || out.AudioDuration != 0 || len(out.Cues) > 0 {
		stages = append(stages, StageAudio)
	}
	if len(out.ImagePaths) > 0 {
		stages = append(stages, StageImages)
	}
	if out.VideoPath != "" || out.VideoObjectKey != "" {
		stages = append(stages, StageAssembly)
	}
	if out.RemoteID != "" || out.DistributionError != "" || out.FallbackNotified {
		stages = append(stages, StageDistribution)
	}
	return stages
}

func outputAssignments(stage Stage, out Output) ([]string, []any, error) {
	switch stage {
	case StageScript:
		prompts, err := encodeStrings(out.VisualPrompts)
		if err != nil {
			return nil, nil, fmt.Errorf("encode visual prompts: %w", err)
		}
		return []string{"script_text = ?", "visual_prompts_json = ?"},
			[]any{out.Script, prompts}, nil
	case StageAudio:
		cues, err := encodeCues(out.Cues)
		if err != nil {
			return nil, nil, fmt.Errorf("encode subtitle cues: %w", err)
		}
		return []string{"audio_path = ?", "audio_duration_ms = ?", "subtitle_cues_json = ?"},
			[]any{out.AudioPath, ceilMillis(out.AudioDuration), cues}, nil
	case StageImages:
		images, err := encodeStrings(out.ImagePaths)
		if err != nil {
			return nil, nil, fmt.Errorf("encode image paths: %w", err)
		}
		return []string{"image_paths_json = ?"}, []any{images}, nil
	case StageAssembly:
		return []string{"video_path = ?", "video_object_key = ?"},
			[]any{out.VideoPath, nullableString(out.VideoObjectKey)}, nil
	case StageDistribution:
		return []string{"remote_id = ?", "distribution_error = ?", "fallback_notified = ?"},
			[]any{nullableString(out.RemoteID), nullableString(out.DistributionError), boolToInt(out.FallbackNotified)}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, stage)
	}
}

// clearedColumns nulls the outputs of from and every later stage.
func clearedColumns(from Stage) []string {
	owned := map[Stage][]string{
		StageScript:       {"script_text = NULL", "visual_prompts_json = NULL"},
		StageAudio:        {"audio_path = NULL", "audio_duration_ms = NULL", "subtitle_cues_json = NULL"},
		StageImages:       {"image_paths_json = NULL"},
		StageAssembly:     {"video_path = NULL", "video_object_key = NULL"},
		StageDistribution: {"remote_id = NULL", "distribution_error = NULL", "fallback_notified = 0"},
	}
	var out []string
	reached := false
	for _, spec := range pipeline {
		if spec.stage == from {
			reached = true
		}
		if reached {
			out = append(out, owned[spec.stage]...)
		}
	}
	return out
}

// ceilMillis rounds d up to whole milliseconds so a stored narration length
// never trims the tail of the audio it describes.
func ceilMillis(d time.Duration) int64 {
	ms := d.Milliseconds()
	if d > time.Duration(ms)*time.Millisecond {
		ms++
	}
	return ms
}
