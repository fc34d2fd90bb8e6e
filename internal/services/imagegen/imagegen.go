package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"newsreel/internal/services"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	maxImageBytes      = 32 << 20
)

// Request describes one still image.
type Request struct {
	Prompt         string
	NegativePrompt string
	Seed           int64
	Width          int
	Height         int
}

// Generator produces encoded image bytes for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// HuggingFace calls a text-to-image inference endpoint.
type HuggingFace struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewHuggingFace constructs an inference client. A nil httpClient uses a
// client with the default timeout.
func NewHuggingFace(endpoint, token string, httpClient *http.Client) *HuggingFace {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HuggingFace{
		endpoint:   strings.TrimSpace(endpoint),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

type hfPayload struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Seed           int64  `json:"seed"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
}

// Generate posts the prompt and returns the image body.
func (h *HuggingFace) Generate(ctx context.Context, req Request) ([]byte, error) {
	if h.endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "images", "huggingface", "endpoint not configured", nil)
	}
	if h.token == "" {
		return nil, services.WithHint(
			services.Wrap(services.ErrConfiguration, "images", "huggingface", "token not configured", nil),
			"set images.token or HF_TOKEN",
		)
	}
	encoded, err := json.Marshal(hfPayload{
		Inputs: req.Prompt,
		Parameters: hfParameters{
			NegativePrompt: req.NegativePrompt,
			Seed:           req.Seed,
			Width:          req.Width,
			Height:         req.Height,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("huggingface: encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "images", "huggingface", "build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+h.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransientExternal, "images", "huggingface", "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, services.Wrap(services.ErrTransientExternal, "images", "huggingface", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, classifyStatus(resp.StatusCode, body)
	}
	if len(body) > maxImageBytes {
		return nil, services.Wrap(services.ErrMalformedOutput, "images", "huggingface", "image exceeds size limit", nil)
	}
	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		return nil, services.Wrap(services.ErrMalformedOutput, "images", "huggingface",
			"expected image, got json: "+snippet(body), nil)
	}
	return body, nil
}

func classifyStatus(code int, body []byte) error {
	msg := fmt.Sprintf("http %d: %s", code, snippet(body))
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return services.WithHint(
			services.Wrap(services.ErrConfiguration, "images", "huggingface", msg, nil),
			"check images.token or HF_TOKEN",
		)
	case code == http.StatusNotFound:
		return services.Wrap(services.ErrConfiguration, "images", "huggingface", msg, nil)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return services.Wrap(services.ErrMalformedOutput, "images", "huggingface", msg, nil)
	default:
		return services.Wrap(services.ErrTransientExternal, "images", "huggingface", msg, nil)
	}
}

func snippet(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	if len(text) > 160 {
		text = text[:160] + "..."
	}
	return text
}

// OpenAI generates images through the OpenAI images API with base64 output.
type OpenAI struct {
	api   openai.Client
	model string
}

// NewOpenAI constructs an OpenAI image client. baseURL may be empty.
func NewOpenAI(apiKey, baseURL, model string, httpClient *http.Client) *OpenAI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{api: openai.NewClient(opts...), model: strings.TrimSpace(model)}
}

// Generate requests one image. The images API has no seed or negative prompt,
// so the negative prompt is folded into the prompt text.
func (o *OpenAI) Generate(ctx context.Context, req Request) ([]byte, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt = prompt + ". Avoid: " + req.NegativePrompt
	}
	resp, err := o.api.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(o.model),
		N:              openai.Int(1),
		Size:           openAISize(req.Width, req.Height),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, classifyOpenAI(apiErr.StatusCode, err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, services.Wrap(services.ErrTransientExternal, "images", "openai", "network error", err)
		}
		return nil, services.Wrap(services.ErrTransientExternal, "images", "openai", "request failed", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, services.Wrap(services.ErrMalformedOutput, "images", "openai", "response carried no image", nil)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedOutput, "images", "openai", "decode base64 image", err)
	}
	return data, nil
}

func classifyOpenAI(code int, err error) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return services.WithHint(
			services.Wrap(services.ErrConfiguration, "images", "openai", "credentials rejected", err),
			"check script.api_key or OPENAI_API_KEY",
		)
	case code == http.StatusBadRequest:
		return services.Wrap(services.ErrMalformedOutput, "images", "openai", "prompt rejected", err)
	case code == http.StatusNotFound:
		return services.Wrap(services.ErrConfiguration, "images", "openai", "model not found", err)
	default:
		return services.Wrap(services.ErrTransientExternal, "images", "openai", fmt.Sprintf("http %d", code), err)
	}
}

// openAISize maps the configured frame onto the closest supported size.
func openAISize(width, height int) openai.ImageGenerateParamsSize {
	switch {
	case height > width:
		return openai.ImageGenerateParamsSize1024x1792
	case width > height:
		return openai.ImageGenerateParamsSize1792x1024
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}
