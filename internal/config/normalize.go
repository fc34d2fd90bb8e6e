package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeScript()
	if err := c.normalizePrompts(); err != nil {
		return err
	}
	c.normalizeAudio()
	c.normalizeImages()
	c.normalizeRender()
	c.normalizeStorage()
	c.normalizeDistribution()
	c.normalizeNotifications()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AssetDir) == "" {
		c.Paths.AssetDir = defaultAssetDir
	}
	if c.Paths.AssetDir, err = expandPath(c.Paths.AssetDir); err != nil {
		return fmt.Errorf("paths.asset_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.EnvFile, err = expandPath(strings.TrimSpace(c.Paths.EnvFile)); err != nil {
		return fmt.Errorf("paths.env_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "", "sqlite3":
		c.Store.Driver = DriverSQLite
	case "pg", "postgresql", "pgx":
		c.Store.Driver = DriverPostgres
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.DSN == "" {
		if value, ok := lookupEnv("NEWSREEL_DATABASE_URL", "DATABASE_URL"); ok {
			c.Store.DSN = value
		}
	}
}

func (c *Config) normalizeScript() {
	c.Script.APIKey = strings.TrimSpace(c.Script.APIKey)
	if c.Script.APIKey == "" {
		if value, ok := lookupEnv("OPENAI_API_KEY"); ok {
			c.Script.APIKey = value
		}
	}
	c.Script.BaseURL = strings.TrimRight(strings.TrimSpace(c.Script.BaseURL), "/")
	if c.Script.BaseURL == "" {
		c.Script.BaseURL = defaultOpenAIBaseURL
	}
	models := make([]string, 0, len(c.Script.Models))
	seen := make(map[string]struct{}, len(c.Script.Models))
	for _, model := range c.Script.Models {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		if _, ok := seen[model]; ok {
			continue
		}
		seen[model] = struct{}{}
		models = append(models, model)
	}
	if len(models) == 0 {
		models = append(models, defaultScriptModels...)
	}
	c.Script.Models = models
	if c.Script.ImageCount <= 0 {
		c.Script.ImageCount = defaultImageCount
	}
}

func (c *Config) normalizePrompts() error {
	path := strings.TrimSpace(c.Script.PromptsPath)
	if path == "" {
		c.Script.PromptsPath = ""
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("script.prompts_path: %w", err)
	}
	c.Script.PromptsPath = expanded
	return nil
}

func (c *Config) normalizeAudio() {
	c.Audio.Region = strings.TrimSpace(c.Audio.Region)
	if c.Audio.Region == "" {
		if value, ok := lookupEnv("AWS_REGION", "AWS_DEFAULT_REGION"); ok {
			c.Audio.Region = value
		} else {
			c.Audio.Region = defaultAudioRegion
		}
	}
	c.Audio.VoiceID = strings.TrimSpace(c.Audio.VoiceID)
	if c.Audio.VoiceID == "" {
		c.Audio.VoiceID = defaultVoiceID
	}
	c.Audio.Engine = strings.ToLower(strings.TrimSpace(c.Audio.Engine))
	if c.Audio.Engine == "" {
		c.Audio.Engine = defaultVoiceEngine
	}
	if c.Audio.WordsPerCue <= 0 {
		c.Audio.WordsPerCue = defaultWordsPerCue
	}
}

func (c *Config) normalizeImages() {
	c.Images.Provider = strings.ToLower(strings.TrimSpace(c.Images.Provider))
	if c.Images.Provider == "" {
		c.Images.Provider = defaultImageProvider
	}
	c.Images.Endpoint = strings.TrimSpace(c.Images.Endpoint)
	if c.Images.Endpoint == "" && c.Images.Provider == ImageProviderHF {
		c.Images.Endpoint = defaultHFEndpoint
	}
	c.Images.Token = strings.TrimSpace(c.Images.Token)
	if c.Images.Token == "" {
		switch c.Images.Provider {
		case ImageProviderHF:
			if value, ok := lookupEnv("HF_TOKEN", "HUGGING_FACE_HUB_TOKEN"); ok {
				c.Images.Token = value
			}
		case ImageProviderOpenAI:
			c.Images.Token = c.Script.APIKey
		}
	}
	c.Images.OpenAIModel = strings.TrimSpace(c.Images.OpenAIModel)
	if c.Images.OpenAIModel == "" {
		c.Images.OpenAIModel = defaultOpenAIImageName
	}
	if c.Images.Concurrency <= 0 {
		c.Images.Concurrency = defaultImageConcurrency
	}
}

func (c *Config) normalizeRender() {
	c.Render.FFmpegBinary = strings.TrimSpace(c.Render.FFmpegBinary)
	if c.Render.FFmpegBinary == "" {
		c.Render.FFmpegBinary = defaultFFmpegBinary
	}
	c.Render.FFprobeBinary = strings.TrimSpace(c.Render.FFprobeBinary)
	if c.Render.FFprobeBinary == "" {
		c.Render.FFprobeBinary = defaultFFprobeBinary
	}
	c.Render.Preset = strings.TrimSpace(c.Render.Preset)
	if c.Render.Preset == "" {
		c.Render.Preset = defaultRenderPreset
	}
	c.Render.SubtitleFont = strings.TrimSpace(c.Render.SubtitleFont)
	if c.Render.SubtitleFont == "" {
		c.Render.SubtitleFont = defaultSubtitleFont
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		if value, ok := lookupEnv("S3_BUCKET_NAME"); ok {
			c.Storage.Bucket = value
		}
	}
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = c.Audio.Region
	}
	c.Storage.Prefix = strings.TrimLeft(strings.TrimSpace(c.Storage.Prefix), "/")
	if c.Storage.Prefix != "" && !strings.HasSuffix(c.Storage.Prefix, "/") {
		c.Storage.Prefix += "/"
	}
	if c.Storage.PresignExpiryHours <= 0 {
		c.Storage.PresignExpiryHours = defaultPresignExpiryHours
	}
}

func (c *Config) normalizeDistribution() {
	d := &c.Distribution
	fill := func(field *string, keys ...string) {
		*field = strings.TrimSpace(*field)
		if *field == "" {
			if value, ok := lookupEnv(keys...); ok {
				*field = value
			}
		}
	}
	fill(&d.ClientID, "YOUTUBE_CLIENT_ID")
	fill(&d.ClientSecret, "YOUTUBE_CLIENT_SECRET")
	fill(&d.RefreshToken, "YOUTUBE_REFRESH_TOKEN")
	d.Privacy = strings.ToLower(strings.TrimSpace(d.Privacy))
	if d.Privacy == "" {
		d.Privacy = defaultPrivacy
	}
	d.CategoryID = strings.TrimSpace(d.CategoryID)
	if d.CategoryID == "" {
		d.CategoryID = defaultCategoryID
	}
	d.FallbackPolicy = strings.ToLower(strings.TrimSpace(d.FallbackPolicy))
	if d.FallbackPolicy == "" {
		d.FallbackPolicy = defaultFallbackPolicy
	}
	tags := d.Tags[:0]
	for _, tag := range d.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	d.Tags = tags
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := lookupEnv("NEWSREEL_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := lookupEnv("NEWSREEL_API_TOKEN"); ok {
			c.API.Token = value
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.StageOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			stage = strings.ToLower(strings.TrimSpace(stage))
			level = strings.ToLower(strings.TrimSpace(level))
			if stage == "" || level == "" {
				continue
			}
			overrides[stage] = level
		}
		c.Logging.StageOverrides = overrides
	}
}

func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}
