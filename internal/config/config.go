package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	AssetDir string `toml:"asset_dir"`
	LogDir   string `toml:"log_dir"`
	EnvFile  string `toml:"env_file"`
}

// Store selects the job store backend.
type Store struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Workflow contains orchestrator pacing and retry configuration.
type Workflow struct {
	MaxIterations       int `toml:"max_iterations"`
	PollInterval        int `toml:"poll_interval"`
	LeaseTimeout        int `toml:"lease_timeout"`
	HeartbeatInterval   int `toml:"heartbeat_interval"`
	BackoffBaseSeconds  int `toml:"backoff_base_seconds"`
	BackoffMaxSeconds   int `toml:"backoff_max_seconds"`
	MalformedMaxRetries int `toml:"malformed_max_retries"`
}

// StageSettings bounds one pipeline stage.
type StageSettings struct {
	MaxRetries     int `toml:"max_retries"`
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Stages holds per-stage retry budgets and call timeouts.
type Stages struct {
	Script       StageSettings `toml:"script"`
	Audio        StageSettings `toml:"audio"`
	Images       StageSettings `toml:"images"`
	Assembly     StageSettings `toml:"assembly"`
	Distribution StageSettings `toml:"distribution"`
}

// Script contains configuration for narration script generation.
type Script struct {
	APIKey      string   `toml:"api_key"`
	BaseURL     string   `toml:"base_url"`
	Models      []string `toml:"models"`
	Temperature float64  `toml:"temperature"`
	ImageCount  int      `toml:"image_count"`
	PromptsPath string   `toml:"prompts_path"`
}

// Audio contains configuration for text-to-speech.
type Audio struct {
	Region      string `toml:"region"`
	VoiceID     string `toml:"voice_id"`
	Engine      string `toml:"engine"`
	WordsPerCue int    `toml:"words_per_cue"`
}

// Images contains configuration for still image generation.
type Images struct {
	Provider    string `toml:"provider"`
	Endpoint    string `toml:"endpoint"`
	Token       string `toml:"token"`
	OpenAIModel string `toml:"openai_model"`
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	Concurrency int    `toml:"concurrency"`
}

// Render contains configuration for video assembly.
type Render struct {
	FFmpegBinary     string  `toml:"ffmpeg_binary"`
	FFprobeBinary    string  `toml:"ffprobe_binary"`
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	FPS              int     `toml:"fps"`
	MaxZoom          float64 `toml:"max_zoom"`
	Preset           string  `toml:"preset"`
	CRF              int     `toml:"crf"`
	SubtitleMaxChars int     `toml:"subtitle_max_chars"`
	SubtitleFont     string  `toml:"subtitle_font"`
	SubtitleFontSize int     `toml:"subtitle_font_size"`
}

// Storage contains configuration for the S3 artifact mirror.
type Storage struct {
	Enabled            bool   `toml:"enabled"`
	Bucket             string `toml:"bucket"`
	Region             string `toml:"region"`
	Prefix             string `toml:"prefix"`
	PresignExpiryHours int    `toml:"presign_expiry_hours"`
}

// Distribution contains configuration for the video platform upload.
type Distribution struct {
	Enabled        bool     `toml:"enabled"`
	ClientID       string   `toml:"client_id"`
	ClientSecret   string   `toml:"client_secret"`
	RefreshToken   string   `toml:"refresh_token"`
	Privacy        string   `toml:"privacy"`
	CategoryID     string   `toml:"category_id"`
	Tags           []string `toml:"tags"`
	FallbackPolicy string   `toml:"fallback_policy"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
	Fallback       bool   `toml:"fallback"`
	Distributed    bool   `toml:"distributed"`
}

// API contains configuration for the manual submission HTTP server.
type API struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
	Token   string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for newsreel.
//
// Configuration sections by subsystem:
//   - Paths: data, asset, and log directories plus the .env credential file
//   - Store: sqlite (default) or postgres job store
//   - Workflow: iteration cap, lease timing, retry backoff
//   - Stages: per-stage retry budget and call timeout
//   - Script, Audio, Images: provider settings for the generation stages
//   - Render: ffmpeg settings for video assembly
//   - Storage: optional S3 mirror of rendered videos
//   - Distribution: YouTube upload and the fallback policy
//   - Notifications: ntfy push notification settings
//   - API: manual submission endpoint
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Workflow      Workflow      `toml:"workflow"`
	Stages        Stages        `toml:"stages"`
	Script        Script        `toml:"script"`
	Audio         Audio         `toml:"audio"`
	Images        Images        `toml:"images"`
	Render        Render        `toml:"render"`
	Storage       Storage       `toml:"storage"`
	Distribution  Distribution  `toml:"distribution"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/newsreel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Credentials missing from the file are read from
// the environment after loading the configured .env file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadEnvFiles(cfg.Paths.EnvFile); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadEnvFiles reads KEY=VALUE pairs into the process environment. Variables that
// are already set win over file contents, and missing files are skipped.
func loadEnvFiles(configured string) error {
	candidates := []string{".env"}
	if strings.TrimSpace(configured) != "" {
		expanded, err := expandPath(configured)
		if err != nil {
			return fmt.Errorf("paths.env_file: %w", err)
		}
		candidates = append([]string{expanded}, candidates...)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load env file %s: %w", candidate, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("newsreel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.AssetDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabaseDSN returns the data source name for the configured store driver. The
// sqlite store defaults to a file under the data directory.
func (c *Config) DatabaseDSN() string {
	if dsn := strings.TrimSpace(c.Store.DSN); dsn != "" {
		return dsn
	}
	if c.Store.Driver == DriverSQLite {
		return filepath.Join(c.Paths.DataDir, "newsreel.db")
	}
	return ""
}

// JobAssetDir returns the per-job directory for one artifact kind (audio,
// images, videos).
func (c *Config) JobAssetDir(kind string, jobID int64) string {
	return filepath.Join(c.Paths.AssetDir, kind, strconv.FormatInt(jobID, 10))
}

// StageSettings returns the retry and timeout bounds for the named stage.
func (c *Config) StageSettings(name string) StageSettings {
	switch name {
	case "script":
		return c.Stages.Script
	case "audio":
		return c.Stages.Audio
	case "images":
		return c.Stages.Images
	case "assembly":
		return c.Stages.Assembly
	case "distribution":
		return c.Stages.Distribution
	default:
		return StageSettings{MaxRetries: defaultStageMaxRetries, TimeoutSeconds: defaultStageTimeoutSeconds}
	}
}

// Timeout converts the configured call timeout into a duration.
func (s StageSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// PollIntervalDuration returns the daemon idle poll interval.
func (w Workflow) PollIntervalDuration() time.Duration {
	return time.Duration(w.PollInterval) * time.Second
}

// LeaseTimeoutDuration returns how long a claim is honoured without renewal.
func (w Workflow) LeaseTimeoutDuration() time.Duration {
	return time.Duration(w.LeaseTimeout) * time.Second
}

// HeartbeatIntervalDuration returns how often running stages renew their lease.
func (w Workflow) HeartbeatIntervalDuration() time.Duration {
	return time.Duration(w.HeartbeatInterval) * time.Second
}

// BackoffBase returns the first retry delay.
func (w Workflow) BackoffBase() time.Duration {
	return time.Duration(w.BackoffBaseSeconds) * time.Second
}

// BackoffMax caps the retry delay.
func (w Workflow) BackoffMax() time.Duration {
	return time.Duration(w.BackoffMaxSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
