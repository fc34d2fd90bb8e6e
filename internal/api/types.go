package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Submission defaults for manually queued stories.
const (
	DefaultSourceName  = "Manual Entry"
	DefaultDescription = "A manually injected story for the pipeline."
)

// ManualJobRequest is the body of POST /api/jobs/manual.
type ManualJobRequest struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	SourceName  string `json:"source_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ManualJobResponse acknowledges a queued story.
type ManualJobResponse struct {
	Message string `json:"message"`
	JobID   int64  `json:"job_id"`
}

// Job describes a queue entry in a transport-friendly format.
type Job struct {
	ID                int64        `json:"id"`
	URL               string       `json:"url"`
	Title             string       `json:"title"`
	Source            string       `json:"source,omitempty"`
	Status            string       `json:"status"`
	NextStage         string       `json:"nextStage,omitempty"`
	Retries           JobRetries   `json:"retries"`
	ErrorKind         string       `json:"errorKind,omitempty"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
	FailedStage       string       `json:"failedStage,omitempty"`
	NextAttemptAt     string       `json:"nextAttemptAt,omitempty"`
	LockedBy          string       `json:"lockedBy,omitempty"`
	Artifacts         JobArtifacts `json:"artifacts"`
	RemoteID          string       `json:"remoteId,omitempty"`
	DistributionError string       `json:"distributionError,omitempty"`
	FallbackNotified  bool         `json:"fallbackNotified,omitempty"`
	CreatedAt         string       `json:"createdAt,omitempty"`
	UpdatedAt         string       `json:"updatedAt,omitempty"`
}

// JobRetries mirrors the per-stage retry counters.
type JobRetries struct {
	Script       int `json:"script"`
	Audio        int `json:"audio"`
	Images       int `json:"images"`
	Assembly     int `json:"assembly"`
	Distribution int `json:"distribution"`
}

// JobArtifacts lists what the pipeline has produced so far.
type JobArtifacts struct {
	ScriptWords    int      `json:"scriptWords,omitempty"`
	VisualPrompts  int      `json:"visualPrompts,omitempty"`
	AudioPath      string   `json:"audioPath,omitempty"`
	AudioSeconds   float64  `json:"audioSeconds,omitempty"`
	Cues           int      `json:"cues,omitempty"`
	ImagePaths     []string `json:"imagePaths,omitempty"`
	VideoPath      string   `json:"videoPath,omitempty"`
	VideoObjectKey string   `json:"videoObjectKey,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Owner       string         `json:"owner,omitempty"`
	Runs        int            `json:"runs"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
