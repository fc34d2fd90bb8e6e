package queue

import (
	"strings"
	"time"

	"newsreel/internal/services"
	"newsreel/internal/subtitles"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending             Status = "pending"
	StatusScripted            Status = "scripted"
	StatusAudioReady          Status = "audio_ready"
	StatusImagesReady         Status = "images_ready"
	StatusAssembled           Status = "assembled"
	StatusDistributed         Status = "distributed"
	StatusDistributedFallback Status = "distributed_fallback"
	StatusFailed              Status = "failed"
	StatusNeedsReview         Status = "needs_manual_review"
)

var allStatuses = []Status{
	StatusPending,
	StatusScripted,
	StatusAudioReady,
	StatusImagesReady,
	StatusAssembled,
	StatusDistributed,
	StatusDistributedFallback,
	StatusFailed,
	StatusNeedsReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every known status in pipeline order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a user-supplied string into a Status. It accepts the
// canonical names and a few aliases.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch normalized {
	case "review", "needs_review", "manual_review":
		return StatusNeedsReview, true
	case "fallback":
		return StatusDistributedFallback, true
	}
	status := Status(normalized)
	if _, ok := statusSet[status]; ok {
		return status, true
	}
	return "", false
}

// IsTerminal reports whether no stage will pick the job up again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDistributed, StatusDistributedFallback, StatusFailed, StatusNeedsReview:
		return true
	default:
		return false
	}
}

// NextStage returns the stage that claims jobs in status s.
func (s Status) NextStage() (Stage, bool) {
	for _, spec := range pipeline {
		if spec.precondition == s {
			return spec.stage, true
		}
	}
	return "", false
}

// Stage names one pipeline step.
type Stage string

const (
	StageScript       Stage = "script"
	StageAudio        Stage = "audio"
	StageImages       Stage = "images"
	StageAssembly     Stage = "assembly"
	StageDistribution Stage = "distribution"
)

type stageSpec struct {
	stage        Stage
	precondition Status
	done         []Status
	retryColumn  string
}

// pipeline lists stages in execution order. Each stage claims jobs in its
// precondition status and may only commit one of its done statuses.
var pipeline = []stageSpec{
	{StageScript, StatusPending, []Status{StatusScripted}, "script_retries"},
	{StageAudio, StatusScripted, []Status{StatusAudioReady}, "audio_retries"},
	{StageImages, StatusAudioReady, []Status{StatusImagesReady}, "images_retries"},
	{StageAssembly, StatusImagesReady, []Status{StatusAssembled}, "assembly_retries"},
	{StageDistribution, StatusAssembled, []Status{StatusDistributed, StatusDistributedFallback}, "distribution_retries"},
}

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	out := make([]Stage, 0, len(pipeline))
	for _, spec := range pipeline {
		out = append(out, spec.stage)
	}
	return out
}

// ParseStage converts a stage name into a Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := lookupStage(normalized); ok {
		return normalized, true
	}
	return "", false
}

// Precondition returns the status a job must be in for the stage to claim it.
func (s Stage) Precondition() Status {
	spec, _ := lookupStage(s)
	return spec.precondition
}

// Done returns the statuses the stage may commit.
func (s Stage) Done() []Status {
	spec, _ := lookupStage(s)
	out := make([]Status, len(spec.done))
	copy(out, spec.done)
	return out
}

func lookupStage(stage Stage) (stageSpec, bool) {
	for _, spec := range pipeline {
		if spec.stage == stage {
			return spec, true
		}
	}
	return stageSpec{}, false
}

// stageCommitting returns the stage allowed to move a job into status.
func stageCommitting(status Status) (stageSpec, bool) {
	for _, spec := range pipeline {
		for _, done := range spec.done {
			if done == status {
				return spec, true
			}
		}
	}
	return stageSpec{}, false
}

// Retries holds the per-stage failure counters.
type Retries struct {
	Script       int
	Audio        int
	Images       int
	Assembly     int
	Distribution int
}

// For returns the counter for stage.
func (r Retries) For(stage Stage) int {
	switch stage {
	case StageScript:
		return r.Script
	case StageAudio:
		return r.Audio
	case StageImages:
		return r.Images
	case StageAssembly:
		return r.Assembly
	case StageDistribution:
		return r.Distribution
	default:
		return 0
	}
}

// Job is one news item moving through the pipeline.
type Job struct {
	ID          int64
	URL         string
	Title       string
	Description string
	Source      string
	PublishedAt *time.Time
	Status      Status

	Script        string
	VisualPrompts []string

	AudioPath     string
	AudioDuration time.Duration
	Cues          []subtitles.Cue

	ImagePaths []string

	VideoPath      string
	VideoObjectKey string

	RemoteID          string
	DistributionError string
	FallbackNotified  bool

	Retries       Retries
	ErrorKind     services.Kind
	ErrorMessage  string
	FailedStage   Stage
	NextAttemptAt *time.Time
	LockedBy      string
	LockedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewJob carries the fields supplied at submission time.
type NewJob struct {
	URL         string
	Title       string
	Description string
	Source      string
	PublishedAt *time.Time
}

// Output is the result a stage commits. Commit persists only the fields owned
// by the committing stage and rejects outputs that touch another stage's fields.
type Output struct {
	// script
	Script        string
	VisualPrompts []string

	// audio
	AudioPath     string
	AudioDuration time.Duration
	Cues          []subtitles.Cue

	// images
	ImagePaths []string

	// assembly
	VideoPath      string
	VideoObjectKey string

	// distribution
	RemoteID          string
	DistributionError string
	FallbackNotified  bool
}

// Disposition is the outcome of recording a stage failure.
type Disposition string

const (
	DispositionRetry  Disposition = "retry"
	DispositionReview Disposition = "review"
	DispositionFailed Disposition = "failed"
)

// Failure describes a stage failure handed to Store.Fail.
type Failure struct {
	Kind     services.Kind
	Message  string
	Terminal bool
	Policy   RetryPolicy
}

// FailResult reports how Fail disposed of the job.
type FailResult struct {
	Disposition   Disposition
	Status        Status
	Attempts      int
	NextAttemptAt time.Time
}

// ResubmitOptions controls how a failed or reviewed job re-enters the pipeline.
type ResubmitOptions struct {
	// FromFailedStage resumes at the stage that failed instead of pending,
	// keeping outputs produced by earlier stages.
	FromFailedStage bool
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	Driver           string
	DSN              string
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	MissingColumns   []string
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per lifecycle bucket.
type HealthSummary struct {
	Total     int
	Pending   int
	InFlight  int
	Leased    int
	Review    int
	Failed    int
	Completed int
	Fallback  int
}

// RetryIn reports how long until the job's backoff window elapses.
func (j *Job) RetryIn(now time.Time) time.Duration {
	if j == nil || j.NextAttemptAt == nil {
		return 0
	}
	if wait := j.NextAttemptAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Leased reports whether a worker currently holds the job.
func (j *Job) Leased() bool {
	return j != nil && j.LockedBy != ""
}
