package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"newsreel/internal/fileutil"
	"newsreel/internal/logging"
	"newsreel/internal/services"
	"newsreel/internal/subtitles"
)

// Request describes one assembly.
type Request struct {
	JobID      int64
	ImagePaths []string
	// Durations optionally requests per-image seconds; empty splits the
	// narration evenly.
	Durations  []float64
	AudioPath  string
	Narration  time.Duration
	Cues       []subtitles.Cue
	OutputPath string
}

// Result describes the assembled video.
type Result struct {
	VideoPath string
	Duration  time.Duration
	Frames    int
	Digest    string
	// Skipped is set when an identical earlier render was reused.
	Skipped bool
}

// Engine renders videos with ffmpeg.
type Engine struct {
	settings    Settings
	runner      Runner
	logger      *slog.Logger
	concurrency int
	lockWait    time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunner replaces the command runner (for testing).
func WithRunner(r Runner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithConcurrency bounds how many segments render at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(settings Settings, opts ...Option) *Engine {
	if strings.TrimSpace(settings.FFmpegBinary) == "" {
		settings.FFmpegBinary = "ffmpeg"
	}
	e := &Engine{
		settings:    settings,
		runner:      execRunner{},
		logger:      logging.NewNop(),
		concurrency: 2,
		lockWait:    250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the engine's render settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Assemble renders req into req.OutputPath. Inputs are never modified and
// intermediate files live in a job-scoped temp directory beside the output,
// removed on return. Concurrent calls for the same output serialize on a file
// lock, and a call whose inputs match the manifest of an existing output
// returns it without encoding.
func (e *Engine) Assemble(ctx context.Context, req Request) (Result, error) {
	if err := e.validate(req); err != nil {
		return Result{}, err
	}
	output, err := filepath.Abs(req.OutputPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "assembly", "resolve output", req.OutputPath, err)
	}
	outDir := filepath.Dir(output)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrRender, "assembly", "create output dir", outDir, err)
	}

	lock := flock.New(output + ".lock")
	locked, err := lock.TryLockContext(ctx, e.lockWait)
	if err != nil || !locked {
		return Result{}, services.Wrap(services.ErrTransientExternal, "assembly", "lock output", output, err)
	}
	defer func() { _ = lock.Unlock() }()

	narration := req.Narration.Seconds()
	segments := make([]SegmentInput, 0, len(req.ImagePaths))
	if len(req.Durations) == 0 {
		segments = EqualSplit(req.ImagePaths, narration)
	} else {
		if len(req.Durations) != len(req.ImagePaths) {
			return Result{}, durationError(fmt.Sprintf("%d durations for %d images", len(req.Durations), len(req.ImagePaths)))
		}
		for i, path := range req.ImagePaths {
			segments = append(segments, SegmentInput{ImagePath: path, Duration: req.Durations[i]})
		}
	}
	plan, err := BuildPlan(segments, narration, e.settings.FPS)
	if err != nil {
		return Result{}, err
	}

	cues := subtitles.WrapCues(subtitles.Normalize(req.Cues, req.Narration), e.settings.SubtitleMaxChars)
	if err := subtitles.Validate(cues, req.Narration); err != nil {
		return Result{}, err
	}

	want, err := buildManifest(e.settings, plan, req.AudioPath, cues)
	if err != nil {
		return Result{}, services.Wrap(services.ErrAssetMissing, "assembly", "hash inputs", "", err)
	}
	result := Result{
		VideoPath: output,
		Duration:  req.Narration,
		Frames:    plan.TotalFrames,
		Digest:    want.Digest(),
	}
	logger := e.logger.With(logging.Int64(logging.FieldJobID, req.JobID), logging.String("output", output))
	if upToDate(output, want) {
		logger.Info("render skipped; output matches manifest",
			logging.String(logging.FieldEventType, "render_skipped"),
			logging.String("digest", result.Digest),
		)
		result.Skipped = true
		return result, nil
	}

	workDir, err := os.MkdirTemp(outDir, fmt.Sprintf(".render-%d-", req.JobID))
	if err != nil {
		return Result{}, services.Wrap(services.ErrRender, "assembly", "create work dir", outDir, err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	srtPath := filepath.Join(workDir, "captions.srt")
	if err := subtitles.WriteSRTFile(srtPath, cues); err != nil {
		return Result{}, services.Wrap(services.ErrRender, "assembly", "write subtitles", srtPath, err)
	}

	started := time.Now()
	clips, err := e.renderSegments(ctx, plan, workDir)
	if err != nil {
		return Result{}, err
	}

	listPath := filepath.Join(workDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(ConcatList(clips)), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrRender, "assembly", "write concat list", listPath, err)
	}
	joined := filepath.Join(workDir, "joined.mp4")
	if err := e.run(ctx, "concat", ConcatArgs(listPath, joined)); err != nil {
		return Result{}, err
	}

	partial := filepath.Join(workDir, "final.mp4")
	if err := e.run(ctx, "mux", MuxArgs(e.settings, joined, req.AudioPath, srtPath, narration, partial)); err != nil {
		return Result{}, err
	}
	if info, statErr := os.Stat(partial); statErr != nil || info.Size() == 0 {
		return Result{}, services.Wrap(services.ErrRender, "assembly", "mux", "encoder produced no output", statErr)
	}
	if err := os.Rename(partial, output); err != nil {
		return Result{}, services.Wrap(services.ErrRender, "assembly", "publish output", output, err)
	}

	outDigest, err := fileutil.Digest(output)
	if err != nil {
		return Result{}, services.Wrap(services.ErrRender, "assembly", "hash output", output, err)
	}
	want.Output = outDigest
	if err := writeManifest(manifestPath(output), want); err != nil {
		logging.WarnWithContext(logger, "failed to write render manifest", "render_manifest_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "an identical re-run will encode again"),
		)
	}

	logger.Info("render complete",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.Int("segments", len(plan.Segments)),
		logging.Int("frames", plan.TotalFrames),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (e *Engine) validate(req Request) error {
	if strings.TrimSpace(req.OutputPath) == "" {
		return services.Wrap(services.ErrConfiguration, "assembly", "validate", "output path required", nil)
	}
	if len(req.ImagePaths) == 0 {
		return services.Wrap(services.ErrAssetMissing, "assembly", "validate", "no images", nil)
	}
	if req.Narration <= 0 {
		return durationError(fmt.Sprintf("narration duration %s is not positive", req.Narration))
	}
	for i, path := range req.ImagePaths {
		if err := requireReadable(path); err != nil {
			return services.Wrap(services.ErrAssetMissing, "assembly", "validate", fmt.Sprintf("image %d", i), err)
		}
	}
	if err := requireReadable(req.AudioPath); err != nil {
		return services.Wrap(services.ErrAssetMissing, "assembly", "validate", "narration audio", err)
	}
	return nil
}

func requireReadable(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("empty path")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}

func (e *Engine) renderSegments(ctx context.Context, plan Plan, workDir string) ([]string, error) {
	clips := make([]string, len(plan.Segments))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)
	for i, seg := range plan.Segments {
		clips[i] = filepath.Join(workDir, fmt.Sprintf("segment_%03d.mp4", seg.Index))
		start, end := MotionFor(seg.Index, e.settings.MaxZoom)
		args := SegmentArgs(e.settings, seg, start, end, clips[i])
		group.Go(func() error {
			return e.run(groupCtx, fmt.Sprintf("segment %d", seg.Index), args)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

func (e *Engine) run(ctx context.Context, step string, args []string) error {
	output, err := e.runner.Run(ctx, e.settings.FFmpegBinary, args...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("ffmpeg %s: %w", step, ctxErr)
	}
	return services.Wrap(services.ErrRender, "assembly", "ffmpeg "+step, tail(string(output), 400), err)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
