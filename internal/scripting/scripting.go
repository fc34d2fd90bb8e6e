package scripting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"newsreel/internal/logging"
	"newsreel/internal/prompts"
	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/services/llm"
	"newsreel/internal/stage"
)

// Completer issues JSON-mode chat completions.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (llm.Completion, error)
}

// Script is the JSON document the model must return.
type Script struct {
	Narration     string   `json:"narration_script"`
	VisualPrompts []string `json:"visual_prompts"`
}

// Executor turns a pending news item into a narration script and scene prompts.
type Executor struct {
	client     Completer
	prompts    *prompts.Pack
	imageCount int
	logger     *slog.Logger
}

// New constructs the script stage.
func New(client Completer, pack *prompts.Pack, imageCount int) *Executor {
	return &Executor{client: client, prompts: pack, imageCount: imageCount, logger: logging.NewNop()}
}

// loggerFor returns the per-job logger stageexec attached to ctx.
func (e *Executor) loggerFor(ctx context.Context) *slog.Logger {
	return logging.NewComponentLogger(logging.FromContext(ctx, e.logger), "scripting")
}

// Run generates the script for job.
func (e *Executor) Run(ctx context.Context, job *queue.Job) (stage.Result, error) {
	logger := e.loggerFor(ctx)
	if e.client == nil || e.prompts == nil {
		return stage.Result{}, services.Wrap(services.ErrConfiguration, "script", "generate", "script stage not configured", nil)
	}
	if strings.TrimSpace(job.Title) == "" && strings.TrimSpace(job.Description) == "" {
		return stage.Result{}, services.Wrap(services.ErrAssetMissing, "script", "generate", "job has neither title nor description", nil)
	}

	source := strings.TrimSpace(job.Source)
	date := ""
	if job.PublishedAt != nil {
		date = job.PublishedAt.UTC().Format("January 2, 2006")
	}
	system, user, err := e.prompts.RenderScript(prompts.ScriptInput{
		Title:      job.Title,
		Content:    job.Description,
		Source:     source,
		Date:       date,
		ImageCount: e.imageCount,
	})
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrConfiguration, "script", "render prompt", "", err)
	}

	completion, err := e.client.CompleteJSON(ctx, system, user)
	if err != nil {
		return stage.Result{}, err
	}
	logger.Debug("script completion received",
		logging.String("model", completion.Model),
		logging.Int("content_bytes", len(completion.Content)),
	)

	var script Script
	if err := llm.DecodeLLMJSON(completion.Content, &script); err != nil {
		return stage.Result{}, services.Wrap(services.ErrMalformedOutput, "script", "decode script", "model "+completion.Model, err)
	}
	script, err = Validate(script, e.imageCount)
	if err != nil {
		return stage.Result{}, err
	}
	script.Narration = Attribute(script.Narration, source)

	logger.Info("script generated",
		logging.String(logging.FieldEventType, "script_generated"),
		logging.String("model", completion.Model),
		logging.Int("narration_chars", len([]rune(script.Narration))),
		logging.Int("visual_prompts", len(script.VisualPrompts)),
	)
	return stage.Result{
		Status: queue.StatusScripted,
		Output: queue.Output{Script: script.Narration, VisualPrompts: script.VisualPrompts},
	}, nil
}

// Validate trims the script and checks it has narration and exactly want
// non-empty visual prompts.
func Validate(script Script, want int) (Script, error) {
	script.Narration = strings.Join(strings.Fields(script.Narration), " ")
	if script.Narration == "" {
		return Script{}, services.Wrap(services.ErrMalformedOutput, "script", "validate", "narration_script is empty", nil)
	}
	cleaned := make([]string, 0, len(script.VisualPrompts))
	for _, p := range script.VisualPrompts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) != want {
		return Script{}, services.Wrap(services.ErrMalformedOutput, "script", "validate",
			fmt.Sprintf("expected exactly %d visual prompts, got %d", want, len(cleaned)), nil)
	}
	script.VisualPrompts = cleaned
	return script, nil
}

// Attribute makes sure the narration names its source, prefixing an
// attribution when the model left it out.
func Attribute(narration, source string) string {
	if source == "" {
		source = prompts.UnknownSource
	}
	if strings.Contains(strings.ToLower(narration), strings.ToLower(source)) {
		return narration
	}
	return fmt.Sprintf("According to %s, %s", source, narration)
}

// HealthCheck reports whether the stage has a client and prompts.
func (e *Executor) HealthCheck(context.Context) stage.Health {
	if e.client == nil {
		return stage.Unhealthy("script", "llm client not configured")
	}
	if e.prompts == nil {
		return stage.Unhealthy("script", "prompt pack not loaded")
	}
	return stage.Healthy("script")
}
