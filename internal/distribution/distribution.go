package distribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"newsreel/internal/config"
	"newsreel/internal/fileutil"
	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/services/youtube"
	"newsreel/internal/stage"
)

// Sink publishes a rendered video and returns its platform ID.
type Sink interface {
	Upload(ctx context.Context, videoPath string, meta youtube.Metadata) (string, error)
}

// Notice describes a video that needs a manual upload.
type Notice struct {
	JobID     int64
	Title     string
	VideoPath string
	ObjectKey string
	Reason    string
}

// FallbackNotifier tells an operator that a video must be uploaded by hand.
type FallbackNotifier interface {
	NotifyFallback(ctx context.Context, notice Notice) error
}

// Options configures the distribution stage.
type Options struct {
	// Policy is config.FallbackRetryOnce or config.FallbackFireAndForget.
	Policy string
	// URLFor builds the public link for a remote ID.
	URLFor func(remoteID string) string
}

// Executor uploads assembled videos, falling back to an operator notice when
// the upload fails.
type Executor struct {
	sink     Sink
	fallback FallbackNotifier
	notifier notifications.Service
	opts     Options
	logger   *slog.Logger
}

// New constructs the distribution stage. A nil sink means distribution is
// disabled and every job takes the fallback path.
func New(sink Sink, fallback FallbackNotifier, notifier notifications.Service, opts Options) *Executor {
	if opts.Policy == "" {
		opts.Policy = config.FallbackRetryOnce
	}
	if opts.URLFor == nil {
		opts.URLFor = youtube.WatchURL
	}
	return &Executor{
		sink:     sink,
		fallback: fallback,
		notifier: notifier,
		opts:     opts,
		logger:   logging.NewNop(),
	}
}

// loggerFor returns the per-job logger stageexec attached to ctx.
func (e *Executor) loggerFor(ctx context.Context) *slog.Logger {
	return logging.NewComponentLogger(logging.FromContext(ctx, e.logger), "distribution")
}

// Run uploads the job's video. An upload failure is not a stage failure: the
// job ends distributed_fallback with the error recorded and the video path
// left as assembly wrote it.
func (e *Executor) Run(ctx context.Context, job *queue.Job) (stage.Result, error) {
	if strings.TrimSpace(job.VideoPath) == "" || !fileutil.NonEmptyFile(job.VideoPath) {
		return stage.Result{}, services.Wrap(services.ErrAssetMissing, "distribution", "upload", "video missing: "+job.VideoPath, nil)
	}
	logger := e.loggerFor(ctx).With(logging.Int64(logging.FieldJobID, job.ID))

	var uploadErr error
	if e.sink == nil {
		uploadErr = services.Wrap(services.ErrUpload, "distribution", "upload", "distribution disabled", nil)
	} else {
		remoteID, err := e.sink.Upload(ctx, job.VideoPath, Metadata(job))
		if err == nil {
			return e.distributed(ctx, logger, job, remoteID), nil
		}
		if ctx.Err() != nil {
			return stage.Result{}, ctx.Err()
		}
		if errors.Is(err, services.ErrAssetMissing) {
			return stage.Result{}, err
		}
		uploadErr = err
	}

	details := services.Details(uploadErr)
	logging.WarnWithContext(logger, "upload failed; sending fallback notice", "upload_fallback",
		logging.Error(uploadErr),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.String(logging.FieldImpact, "video must be uploaded manually"),
	)
	notified := e.notifyFallback(ctx, logger, Notice{
		JobID:     job.ID,
		Title:     job.Title,
		VideoPath: job.VideoPath,
		ObjectKey: job.VideoObjectKey,
		Reason:    uploadErr.Error(),
	})
	return stage.Result{
		Status: queue.StatusDistributedFallback,
		Output: queue.Output{
			DistributionError: uploadErr.Error(),
			FallbackNotified:  notified,
		},
	}, nil
}

func (e *Executor) distributed(ctx context.Context, logger *slog.Logger, job *queue.Job, remoteID string) stage.Result {
	link := e.opts.URLFor(remoteID)
	logger.Info("video published",
		logging.String(logging.FieldEventType, "video_published"),
		logging.String("remote_id", remoteID),
		logging.String("url", link),
	)
	if e.notifier != nil {
		if err := e.notifier.Publish(ctx, notifications.EventDistributed, notifications.Payload{
			"title": job.Title,
			"jobID": job.ID,
			"url":   link,
		}); err != nil {
			logging.WarnWithContext(logger, "published notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "operator not told about the upload"),
			)
		}
	}
	return stage.Result{Status: queue.StatusDistributed, Output: queue.Output{RemoteID: remoteID}}
}

// notifyFallback sends the fallback notice once, and once more under the
// retry_once policy. It reports whether a notice was delivered.
func (e *Executor) notifyFallback(ctx context.Context, logger *slog.Logger, notice Notice) bool {
	if e.fallback == nil {
		logging.WarnWithContext(logger, "no fallback notifier configured", "fallback_unconfigured",
			logging.String(logging.FieldImpact, "nobody is told to upload the video"),
		)
		return false
	}
	err := e.fallback.NotifyFallback(ctx, notice)
	if err != nil && e.opts.Policy == config.FallbackRetryOnce && !errors.Is(err, notifications.ErrNotConfigured) && ctx.Err() == nil {
		logger.Info("retrying fallback notice", logging.Error(err))
		err = e.fallback.NotifyFallback(ctx, notice)
	}
	if err != nil {
		logging.WarnWithContext(logger, "fallback notice failed", "fallback_notice_failed",
			logging.Error(err),
			logging.String("policy", e.opts.Policy),
			logging.String(logging.FieldImpact, "video path recorded on the job only"),
		)
		return false
	}
	return true
}

// Metadata builds the upload metadata for a job.
func Metadata(job *queue.Job) youtube.Metadata {
	var desc strings.Builder
	if d := strings.TrimSpace(job.Description); d != "" {
		desc.WriteString(d)
		desc.WriteString("\n\n")
	}
	if job.Source != "" {
		fmt.Fprintf(&desc, "Source: %s\n", job.Source)
	}
	if job.URL != "" {
		desc.WriteString(job.URL)
		desc.WriteString("\n")
	}
	desc.WriteString("#shorts #news")
	return youtube.Metadata{
		Title:       strings.TrimSpace(job.Title),
		Description: desc.String(),
		Tags:        []string{"news", "shorts"},
	}
}

// HealthCheck reports whether uploads are possible.
func (e *Executor) HealthCheck(context.Context) stage.Health {
	if e.sink == nil {
		return stage.Degraded("distribution", "uploads disabled; every job takes the fallback path")
	}
	return stage.Healthy("distribution")
}
