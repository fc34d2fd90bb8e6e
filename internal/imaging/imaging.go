package imaging

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"newsreel/internal/fileutil"
	"newsreel/internal/logging"
	"newsreel/internal/prompts"
	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/services/imagegen"
	"newsreel/internal/stage"
)

// Options configures the images stage.
type Options struct {
	// Dir returns the per-job output directory.
	Dir         func(jobID int64) string
	Width       int
	Height      int
	Concurrency int
}

// Executor renders one still image per visual prompt.
type Executor struct {
	gen     imagegen.Generator
	prompts *prompts.Pack
	opts    Options
	logger  *slog.Logger
}

// New constructs the images stage.
func New(gen imagegen.Generator, pack *prompts.Pack, opts Options) *Executor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Executor{gen: gen, prompts: pack, opts: opts, logger: logging.NewNop()}
}

// loggerFor returns the per-job logger stageexec attached to ctx.
func (e *Executor) loggerFor(ctx context.Context) *slog.Logger {
	return logging.NewComponentLogger(logging.FromContext(ctx, e.logger), "imaging")
}

// Seed derives the generator seed for one scene so re-runs request the same
// image.
func Seed(jobID int64, index int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "newsreel:%d:%d", jobID, index)
	return int64(h.Sum64() & 0x7fffffff)
}

// Run generates every scene concurrently. Scenes already on disk from an
// earlier attempt with the same prompt and seed are reused.
func (e *Executor) Run(ctx context.Context, job *queue.Job) (stage.Result, error) {
	logger := e.loggerFor(ctx)
	if e.gen == nil || e.prompts == nil || e.opts.Dir == nil {
		return stage.Result{}, services.Wrap(services.ErrConfiguration, "images", "generate", "images stage not configured", nil)
	}
	if len(job.VisualPrompts) == 0 {
		return stage.Result{}, services.Wrap(services.ErrAssetMissing, "images", "generate", "job has no visual prompts", nil)
	}

	dir := e.opts.Dir(job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stage.Result{}, services.Wrap(services.ErrConfiguration, "images", "create directory", dir, err)
	}
	negative := e.prompts.NegativePrompt()
	paths := make([]string, len(job.VisualPrompts))
	reused := make([]bool, len(job.VisualPrompts))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.opts.Concurrency)
	for i, scene := range job.VisualPrompts {
		req := imagegen.Request{
			Prompt:         e.prompts.ImagePrompt(scene),
			NegativePrompt: negative,
			Seed:           Seed(job.ID, i),
			Width:          e.opts.Width,
			Height:         e.opts.Height,
		}
		stem := sceneStem(i, req)
		group.Go(func() error {
			if existing, ok := findScene(dir, stem); ok {
				paths[i] = existing
				reused[i] = true
				return nil
			}
			data, err := e.gen.Generate(groupCtx, req)
			if err != nil {
				return err
			}
			format, err := ValidateImage(data)
			if err != nil {
				return services.Wrap(services.ErrMalformedOutput, "images", "validate image",
					fmt.Sprintf("scene %d", i+1), err)
			}
			path := filepath.Join(dir, stem+"."+format)
			if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
				return services.Wrap(services.ErrConfiguration, "images", "write image", path, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return stage.Result{}, ctx.Err()
		}
		return stage.Result{}, err
	}

	reusedCount := 0
	for _, r := range reused {
		if r {
			reusedCount++
		}
	}
	logger.Info("images ready",
		logging.String(logging.FieldEventType, "images_ready"),
		logging.Int("images", len(paths)),
		logging.Int("reused", reusedCount),
	)
	return stage.Result{Status: queue.StatusImagesReady, Output: queue.Output{ImagePaths: paths}}, nil
}

// sceneStem names a scene file after its index and a digest of the request,
// so a changed prompt never reuses a stale image.
func sceneStem(index int, req imagegen.Request) string {
	digest := fileutil.DigestBytes([]byte(fmt.Sprintf("%s\x00%s\x00%d\x00%dx%d",
		req.Prompt, req.NegativePrompt, req.Seed, req.Width, req.Height)))
	return fmt.Sprintf("scene-%02d-%s", index+1, digest[:12])
}

func findScene(dir, stem string) (string, bool) {
	for _, ext := range []string{"png", "jpeg"} {
		path := filepath.Join(dir, stem+"."+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if _, err := ValidateImage(data); err == nil {
			return path, true
		}
	}
	return "", false
}

// ValidateImage decodes the image header and returns its format.
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty image")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", fmt.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}
	return strings.ToLower(format), nil
}

// HealthCheck reports whether a generator is wired.
func (e *Executor) HealthCheck(context.Context) stage.Health {
	if e.gen == nil {
		return stage.Unhealthy("images", "image generator not configured")
	}
	return stage.Healthy("images")
}
