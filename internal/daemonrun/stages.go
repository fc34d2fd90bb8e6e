package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsreel/internal/assembly"
	"newsreel/internal/config"
	"newsreel/internal/deps"
	"newsreel/internal/distribution"
	"newsreel/internal/imaging"
	"newsreel/internal/logging"
	"newsreel/internal/media/ffprobe"
	"newsreel/internal/narration"
	"newsreel/internal/notifications"
	"newsreel/internal/prompts"
	"newsreel/internal/render"
	"newsreel/internal/scripting"
	"newsreel/internal/services/imagegen"
	"newsreel/internal/services/llm"
	"newsreel/internal/services/objectstore"
	"newsreel/internal/services/tts"
	"newsreel/internal/services/youtube"
	"newsreel/internal/workflow"
)

// BuildStages constructs every pipeline stage from configuration. Optional
// integrations (object storage, YouTube) stay unset when disabled; the stages
// treat a missing mirror or sink as "not configured".
func BuildStages(ctx context.Context, cfg *config.Config, logger *slog.Logger, notifier notifications.Service) (workflow.StageSet, error) {
	if cfg == nil {
		return workflow.StageSet{}, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	pack, err := loadPrompts(cfg.Script.PromptsPath)
	if err != nil {
		return workflow.StageSet{}, err
	}

	ffmpegPath := deps.ResolveFFmpegPath(cfg.Render.FFmpegBinary)
	prober := ffprobe.New(deps.ResolveFFprobePath(cfg.Render.FFprobeBinary, ffmpegPath))

	completer := llm.NewClient(llm.Config{
		APIKey:         cfg.Script.APIKey,
		BaseURL:        cfg.Script.BaseURL,
		Models:         cfg.Script.Models,
		Temperature:    cfg.Script.Temperature,
		TimeoutSeconds: cfg.Stages.Script.TimeoutSeconds,
	}, llm.WithLogger(logger))

	synth, err := tts.NewClient(ctx, tts.Config{
		Region:  cfg.Audio.Region,
		VoiceID: cfg.Audio.VoiceID,
		Engine:  cfg.Audio.Engine,
	})
	if err != nil {
		return workflow.StageSet{}, fmt.Errorf("init speech synthesis: %w", err)
	}

	generator, err := imageGenerator(cfg.Images)
	if err != nil {
		return workflow.StageSet{}, err
	}

	var (
		mirror    assembly.Mirror
		presigner distribution.Presigner
	)
	if cfg.Storage.Enabled {
		store, err := objectstore.New(ctx, objectstore.Config{
			Bucket:        cfg.Storage.Bucket,
			Region:        cfg.Storage.Region,
			Prefix:        cfg.Storage.Prefix,
			PresignExpiry: time.Duration(cfg.Storage.PresignExpiryHours) * time.Hour,
		})
		if err != nil {
			return workflow.StageSet{}, fmt.Errorf("init object storage: %w", err)
		}
		mirror = store
		presigner = store
	}

	var sink distribution.Sink
	if cfg.Distribution.Enabled {
		uploader, err := youtube.New(ctx, youtube.Config{
			ClientID:     cfg.Distribution.ClientID,
			ClientSecret: cfg.Distribution.ClientSecret,
			RefreshToken: cfg.Distribution.RefreshToken,
			Privacy:      cfg.Distribution.Privacy,
			CategoryID:   cfg.Distribution.CategoryID,
			Tags:         cfg.Distribution.Tags,
		})
		if err != nil {
			return workflow.StageSet{}, fmt.Errorf("init youtube uploader: %w", err)
		}
		sink = uploader
	}

	engine := render.NewEngine(render.SettingsFromConfig(cfg.Render),
		render.WithLogger(logging.StageLogger(logger, cfg, "assembly")),
	)

	return workflow.StageSet{
		Script: scripting.New(completer, pack, cfg.Script.ImageCount),
		Audio: narration.New(synth, prober, narration.Options{
			Dir:         assetDir(cfg, "audio"),
			Voice:       cfg.Audio.VoiceID,
			WordsPerCue: cfg.Audio.WordsPerCue,
		}),
		Images: imaging.New(generator, pack, imaging.Options{
			Dir:         assetDir(cfg, "images"),
			Width:       cfg.Images.Width,
			Height:      cfg.Images.Height,
			Concurrency: cfg.Images.Concurrency,
		}),
		Assembly: assembly.New(engine, prober, mirror, assembly.Options{
			Dir:    assetDir(cfg, "videos"),
			Width:  cfg.Render.Width,
			Height: cfg.Render.Height,
		}),
		Distribution: distribution.New(sink,
			distribution.NewNtfyFallback(notifier, presigner, logger),
			notifier,
			distribution.Options{
				Policy: cfg.Distribution.FallbackPolicy,
				URLFor: youtube.WatchURL,
			}),
	}, nil
}

func loadPrompts(path string) (*prompts.Pack, error) {
	if path == "" {
		return prompts.Default()
	}
	pack, err := prompts.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load prompts %s: %w", path, err)
	}
	return pack, nil
}

func imageGenerator(cfg config.Images) (imagegen.Generator, error) {
	switch cfg.Provider {
	case config.ImageProviderHF:
		return imagegen.NewHuggingFace(cfg.Endpoint, cfg.Token, nil), nil
	case config.ImageProviderOpenAI:
		return imagegen.NewOpenAI(cfg.Token, cfg.Endpoint, cfg.OpenAIModel, nil), nil
	default:
		return nil, fmt.Errorf("unsupported image provider %q", cfg.Provider)
	}
}

func assetDir(cfg *config.Config, kind string) func(int64) string {
	return func(jobID int64) string {
		return cfg.JobAssetDir(kind, jobID)
	}
}
