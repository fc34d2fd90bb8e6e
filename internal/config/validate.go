package config

import (
	"errors"
	"fmt"
	"strings"
)

var validLogLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}

// Validate ensures the configuration is usable. Provider credentials are not
// required here; stage health checks and preflight report them so queue
// commands keep working on machines without API keys.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validateScript(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateDistribution(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn must be set when store.driver is postgres (or set NEWSREEL_DATABASE_URL)")
		}
		return nil
	default:
		return fmt.Errorf("store.driver: unsupported value %q (want sqlite or postgres)", c.Store.Driver)
	}
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.max_iterations":       c.Workflow.MaxIterations,
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.lease_timeout":        c.Workflow.LeaseTimeout,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.backoff_base_seconds": c.Workflow.BackoffBaseSeconds,
		"workflow.backoff_max_seconds":  c.Workflow.BackoffMaxSeconds,
	}); err != nil {
		return err
	}
	if c.Workflow.LeaseTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.lease_timeout must be greater than workflow.heartbeat_interval")
	}
	if c.Workflow.BackoffMaxSeconds < c.Workflow.BackoffBaseSeconds {
		return errors.New("workflow.backoff_max_seconds must be >= workflow.backoff_base_seconds")
	}
	if c.Workflow.MalformedMaxRetries < 0 {
		return errors.New("workflow.malformed_max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateStages() error {
	stages := map[string]StageSettings{
		"script":       c.Stages.Script,
		"audio":        c.Stages.Audio,
		"images":       c.Stages.Images,
		"assembly":     c.Stages.Assembly,
		"distribution": c.Stages.Distribution,
	}
	for name, settings := range stages {
		if settings.MaxRetries < 0 {
			return fmt.Errorf("stages.%s.max_retries must be >= 0", name)
		}
		if settings.TimeoutSeconds <= 0 {
			return fmt.Errorf("stages.%s.timeout_seconds must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateScript() error {
	if len(c.Script.Models) == 0 {
		return errors.New("script.models must include at least one model")
	}
	if c.Script.Temperature < 0 || c.Script.Temperature > 2 {
		return errors.New("script.temperature must be between 0 and 2")
	}
	if c.Script.ImageCount > 12 {
		return errors.New("script.image_count must be between 1 and 12")
	}
	return nil
}

func (c *Config) validateImages() error {
	switch c.Images.Provider {
	case ImageProviderHF:
		if c.Images.Endpoint == "" {
			return errors.New("images.endpoint must be set when images.provider is huggingface")
		}
	case ImageProviderOpenAI:
	default:
		return fmt.Errorf("images.provider: unsupported value %q (want huggingface or openai)", c.Images.Provider)
	}
	return ensurePositiveMap(map[string]int{
		"images.width":  c.Images.Width,
		"images.height": c.Images.Height,
	})
}

func (c *Config) validateRender() error {
	if err := ensurePositiveMap(map[string]int{
		"render.width":              c.Render.Width,
		"render.height":             c.Render.Height,
		"render.fps":                c.Render.FPS,
		"render.subtitle_max_chars": c.Render.SubtitleMaxChars,
		"render.subtitle_font_size": c.Render.SubtitleFontSize,
	}); err != nil {
		return err
	}
	if c.Render.Width%2 != 0 || c.Render.Height%2 != 0 {
		return errors.New("render.width and render.height must be even")
	}
	if c.Render.MaxZoom < 1 || c.Render.MaxZoom > 4 {
		return errors.New("render.max_zoom must be between 1 and 4")
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return errors.New("render.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set when storage.enabled is true (or set S3_BUCKET_NAME)")
	}
	return nil
}

func (c *Config) validateDistribution() error {
	d := c.Distribution
	switch d.FallbackPolicy {
	case FallbackRetryOnce, FallbackFireAndForget:
	default:
		return fmt.Errorf("distribution.fallback_policy: unsupported value %q (want retry_once or fire_and_forget)", d.FallbackPolicy)
	}
	switch d.Privacy {
	case "public", "unlisted", "private":
	default:
		return fmt.Errorf("distribution.privacy: unsupported value %q", d.Privacy)
	}
	if !d.Enabled {
		return nil
	}
	var missing []string
	if d.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if d.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if d.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("distribution.%s must be set when distribution.enabled is true (or set YOUTUBE_* env vars)", strings.Join(missing, ", distribution."))
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	for stage, level := range c.Logging.StageOverrides {
		if _, ok := validLogLevels[level]; !ok {
			return fmt.Errorf("logging.stage_overrides.%s: unsupported value %q", stage, level)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
