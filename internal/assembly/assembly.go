package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"newsreel/internal/logging"
	"newsreel/internal/media/ffprobe"
	"newsreel/internal/queue"
	"newsreel/internal/render"
	"newsreel/internal/services"
	"newsreel/internal/services/objectstore"
	"newsreel/internal/stage"
)

// Assembler renders a video from a request.
type Assembler interface {
	Assemble(ctx context.Context, req render.Request) (render.Result, error)
}

// Inspector probes a rendered file.
type Inspector interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Mirror uploads rendered videos to object storage.
type Mirror interface {
	Key(jobID int64, name string) string
	PutFile(ctx context.Context, key, localPath, contentType string) (objectstore.Object, error)
}

// Options configures the assembly stage.
type Options struct {
	// Dir returns the per-job video directory.
	Dir    func(jobID int64) string
	Width  int
	Height int
}

// Executor turns the narration, cues and images of a job into one video.
type Executor struct {
	engine    Assembler
	inspector Inspector
	mirror    Mirror
	opts      Options
	logger    *slog.Logger
}

// New constructs the assembly stage. inspector and mirror are optional.
func New(engine Assembler, inspector Inspector, mirror Mirror, opts Options) *Executor {
	return &Executor{
		engine:    engine,
		inspector: inspector,
		mirror:    mirror,
		opts:      opts,
		logger:    logging.NewNop(),
	}
}

// loggerFor returns the per-job logger stageexec attached to ctx.
func (e *Executor) loggerFor(ctx context.Context) *slog.Logger {
	return logging.NewComponentLogger(logging.FromContext(ctx, e.logger), "assembly")
}

// Run renders final.mp4 for the job. A mirror failure is logged and leaves
// the object key empty; the local file is the stage's product.
func (e *Executor) Run(ctx context.Context, job *queue.Job) (stage.Result, error) {
	logger := e.loggerFor(ctx)
	if e.engine == nil || e.opts.Dir == nil {
		return stage.Result{}, services.Wrap(services.ErrConfiguration, "assembly", "assemble", "assembly stage not configured", nil)
	}
	if job.AudioPath == "" || job.AudioDuration <= 0 {
		return stage.Result{}, services.Wrap(services.ErrAssetMissing, "assembly", "assemble", "job has no narration", nil)
	}
	if len(job.ImagePaths) == 0 {
		return stage.Result{}, services.Wrap(services.ErrAssetMissing, "assembly", "assemble", "job has no images", nil)
	}

	output := filepath.Join(e.opts.Dir(job.ID), "final.mp4")
	result, err := e.engine.Assemble(ctx, render.Request{
		JobID:      job.ID,
		ImagePaths: job.ImagePaths,
		AudioPath:  job.AudioPath,
		Narration:  job.AudioDuration,
		Cues:       job.Cues,
		OutputPath: output,
	})
	if err != nil {
		return stage.Result{}, err
	}
	if err := e.verify(ctx, result.VideoPath); err != nil {
		return stage.Result{}, err
	}

	out := queue.Output{VideoPath: result.VideoPath}
	if e.mirror != nil {
		key := e.mirror.Key(job.ID, filepath.Base(result.VideoPath))
		obj, err := e.mirror.PutFile(ctx, key, result.VideoPath, "video/mp4")
		if err != nil {
			details := services.Details(err)
			logging.WarnWithContext(logger, "video mirror failed", "video_mirror_failed",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorKind, string(details.Kind)),
				logging.String(logging.FieldErrorHint, details.Hint),
				logging.String(logging.FieldImpact, "fallback notifications will not carry a download link"),
			)
		} else {
			out.VideoObjectKey = obj.Key
		}
	}

	logger.Info("video assembled",
		logging.String(logging.FieldEventType, "video_assembled"),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("video_path", result.VideoPath),
		logging.Int("frames", result.Frames),
		logging.Bool("reused", result.Skipped),
		logging.String("object_key", out.VideoObjectKey),
	)
	return stage.Result{Status: queue.StatusAssembled, Output: out}, nil
}

func (e *Executor) verify(ctx context.Context, path string) error {
	if e.inspector == nil {
		return nil
	}
	probe, err := e.inspector.Inspect(ctx, path)
	if err != nil {
		return services.Wrap(services.ErrRender, "assembly", "verify output", path, err)
	}
	if probe.VideoStreamCount() != 1 || probe.AudioStreamCount() != 1 {
		return services.Wrap(services.ErrRender, "assembly", "verify output",
			fmt.Sprintf("expected 1 video and 1 audio stream, found %d and %d", probe.VideoStreamCount(), probe.AudioStreamCount()), nil)
	}
	if e.opts.Width > 0 && e.opts.Height > 0 {
		w, h, ok := probe.VideoSize()
		if !ok || w != e.opts.Width || h != e.opts.Height {
			return services.Wrap(services.ErrRender, "assembly", "verify output",
				fmt.Sprintf("expected %dx%d frame, found %dx%d", e.opts.Width, e.opts.Height, w, h), nil)
		}
	}
	return nil
}

// HealthCheck reports whether the render engine is wired.
func (e *Executor) HealthCheck(context.Context) stage.Health {
	if e.engine == nil {
		return stage.Unhealthy("assembly", "render engine not configured")
	}
	return stage.Healthy("assembly")
}
