package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"newsreel/internal/logging"
	"newsreel/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// DefaultHTTPTimeout returns the per-request timeout applied when none is configured.
func DefaultHTTPTimeout() time.Duration {
	return defaultHTTPTimeout
}

// Config describes how to reach the chat completion API.
type Config struct {
	APIKey         string
	BaseURL        string
	Models         []string
	Temperature    float64
	TimeoutSeconds int
}

// Client issues JSON-mode chat completions against an ordered list of models.
type Client struct {
	cfg        Config
	api        openai.Client
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger used to report model fallbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	models := make([]string, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		if trimmed := strings.TrimSpace(model); trimmed != "" {
			models = append(models, trimmed)
		}
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Models:         models,
			Temperature:    cfg.Temperature,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "llm")

	requestOpts := []option.RequestOption{
		option.WithAPIKey(client.cfg.APIKey),
		option.WithHTTPClient(client.httpClient),
		option.WithMaxRetries(0),
	}
	if client.cfg.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(client.cfg.BaseURL))
	}
	client.api = openai.NewClient(requestOpts...)
	return client
}

// Models returns the configured model waterfall.
func (c *Client) Models() []string {
	return append([]string(nil), c.cfg.Models...)
}

// Completion is the raw JSON payload returned by a model.
type Completion struct {
	Model        string
	Content      string
	FinishReason string
}

type emptyContentError struct {
	Model        string
	FinishReason string
	Refusal      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("model %s: empty content (finish_reason=%q, refusal=%q)", e.Model, e.FinishReason, e.Refusal)
}

// CompleteJSON issues a JSON-only chat completion request with the supplied prompts.
// Models are tried in order; a rate-limited or overloaded model hands the request
// to the next one. When every model is exhausted the error is transient.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (Completion, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" {
		return Completion{}, errors.New("llm complete: system prompt required")
	}
	if userPrompt == "" {
		return Completion{}, errors.New("llm complete: user prompt required")
	}
	if c.cfg.APIKey == "" {
		return Completion{}, services.Wrap(services.ErrConfiguration, "script", "llm complete", "api key required", nil)
	}
	if len(c.cfg.Models) == 0 {
		return Completion{}, services.Wrap(services.ErrConfiguration, "script", "llm complete", "no models configured", nil)
	}

	var lastErr error
	for _, model := range c.cfg.Models {
		completion, err := c.completeOnce(ctx, model, systemPrompt, userPrompt)
		if err == nil {
			return completion, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Completion{}, ctxErr
		}
		if !shouldFallThrough(err) {
			return Completion{}, classify(model, err)
		}
		c.logger.Warn("model unavailable; trying next model",
			logging.String("model", model),
			logging.Error(err),
			logging.String(logging.FieldEventType, "llm_model_fallback"),
		)
		lastErr = err
	}
	return Completion{}, services.Wrap(
		services.ErrTransientExternal,
		"script",
		"llm complete",
		fmt.Sprintf("all %d models unavailable", len(c.cfg.Models)),
		lastErr,
	)
}

func (c *Client) completeOnce(ctx context.Context, model, systemPrompt, userPrompt string) (Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(c.cfg.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return Completion{}, &emptyContentError{Model: model}
	}
	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return Completion{}, &emptyContentError{
			Model:        model,
			FinishReason: string(choice.FinishReason),
			Refusal:      strings.TrimSpace(choice.Message.Refusal),
		}
	}
	name := strings.TrimSpace(resp.Model)
	if name == "" {
		name = model
	}
	return Completion{Model: name, Content: content, FinishReason: string(choice.FinishReason)}, nil
}

// HealthCheck issues a fast ping against the first configured model.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("llm health: api key required")
	}
	completion, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(completion.Content, &parsed); err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// shouldFallThrough reports whether the next model in the waterfall should be tried.
func shouldFallThrough(err error) bool {
	switch statusCode(err) {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// classify maps a single-model failure onto the stage error taxonomy.
func classify(model string, err error) error {
	var empty *emptyContentError
	if errors.As(err, &empty) {
		return services.Wrap(services.ErrMalformedOutput, "script", "llm complete", "model returned no content", err)
	}
	code := statusCode(err)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return services.WithHint(
			services.Wrap(services.ErrConfiguration, "script", "llm complete", "model "+model+" rejected credentials", err),
			"check script.api_key or OPENAI_API_KEY",
		)
	case code == http.StatusRequestTimeout || code >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransientExternal, "script", "llm complete", "model "+model+" failed", err)
	case code >= http.StatusBadRequest:
		return services.Wrap(services.ErrConfiguration, "script", "llm complete", "model "+model+" rejected request", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return services.Wrap(services.ErrTransientExternal, "script", "llm complete", "network error", err)
	}
	return services.Wrap(services.ErrTransientExternal, "script", "llm complete", "request failed", err)
}

// DecodeLLMJSON decodes JSON from an LLM response, handling common formatting
// quirks. Failures are tagged as malformed output.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("%w: empty payload", services.ErrMalformedOutput)
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w: %v (payload snippet: %s)", services.ErrMalformedOutput, directErr, summarizePayloadSnippet(trimmed))
	}

	sanitizedErr := json.Unmarshal([]byte(sanitized), target)
	if sanitizedErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %v (sanitized payload snippet: %s)", services.ErrMalformedOutput, sanitizedErr, summarizePayloadSnippet(sanitized))
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
