package config

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Fallback policies applied when the fallback notification itself fails.
const (
	FallbackRetryOnce     = "retry_once"
	FallbackFireAndForget = "fire_and_forget"
)

// Image providers.
const (
	ImageProviderHF     = "huggingface"
	ImageProviderOpenAI = "openai"
)

const (
	defaultImageProvider   = ImageProviderHF
	defaultFallbackPolicy  = FallbackRetryOnce
	defaultHFEndpoint      = "https://router.huggingface.co/hf-inference/models/stabilityai/stable-diffusion-xl-base-1.0"
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIImageName = "dall-e-3"

	defaultDataDir  = "~/.local/share/newsreel"
	defaultAssetDir = "~/.local/share/newsreel/assets"
	defaultLogDir   = "~/.local/share/newsreel/logs"
	defaultEnvFile  = "~/.config/newsreel/.env"

	defaultMaxIterations       = 10
	defaultPollInterval        = 15
	defaultLeaseTimeout        = 900
	defaultHeartbeatInterval   = 30
	defaultBackoffBaseSeconds  = 30
	defaultBackoffMaxSeconds   = 900
	defaultMalformedMaxRetries = 2

	defaultStageMaxRetries     = 3
	defaultStageTimeoutSeconds = 300

	defaultScriptTemperature = 0.7
	defaultImageCount        = 4
	defaultAudioRegion       = "us-east-1"
	defaultVoiceID           = "Matthew"
	defaultVoiceEngine       = "neural"
	defaultWordsPerCue       = 3
	defaultImageWidth        = 768
	defaultImageHeight       = 1344
	defaultImageConcurrency  = 4

	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultRenderWidth      = 1080
	defaultRenderHeight     = 1920
	defaultRenderFPS        = 24
	defaultMaxZoom          = 1.5
	defaultRenderPreset     = "medium"
	defaultRenderCRF        = 20
	defaultSubtitleMaxChars = 16
	defaultSubtitleFont     = "Arial"
	defaultSubtitleFontSize = 75

	defaultStoragePrefix      = "videos/"
	defaultPresignExpiryHours = 72

	defaultPrivacy    = "private"
	defaultCategoryID = "25"

	defaultAPIBind   = "127.0.0.1:7490"
	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

var defaultScriptModels = []string{"gpt-4o-mini", "gpt-4o"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			AssetDir: defaultAssetDir,
			LogDir:   defaultLogDir,
			EnvFile:  defaultEnvFile,
		},
		Store: Store{
			Driver: DriverSQLite,
		},
		Workflow: Workflow{
			MaxIterations:       defaultMaxIterations,
			PollInterval:        defaultPollInterval,
			LeaseTimeout:        defaultLeaseTimeout,
			HeartbeatInterval:   defaultHeartbeatInterval,
			BackoffBaseSeconds:  defaultBackoffBaseSeconds,
			BackoffMaxSeconds:   defaultBackoffMaxSeconds,
			MalformedMaxRetries: defaultMalformedMaxRetries,
		},
		Stages: Stages{
			Script:       StageSettings{MaxRetries: 3, TimeoutSeconds: 120},
			Audio:        StageSettings{MaxRetries: 3, TimeoutSeconds: 180},
			Images:       StageSettings{MaxRetries: 3, TimeoutSeconds: 600},
			Assembly:     StageSettings{MaxRetries: 2, TimeoutSeconds: 1800},
			Distribution: StageSettings{MaxRetries: 3, TimeoutSeconds: 900},
		},
		Script: Script{
			BaseURL:     defaultOpenAIBaseURL,
			Models:      append([]string(nil), defaultScriptModels...),
			Temperature: defaultScriptTemperature,
			ImageCount:  defaultImageCount,
		},
		Audio: Audio{
			Region:      defaultAudioRegion,
			VoiceID:     defaultVoiceID,
			Engine:      defaultVoiceEngine,
			WordsPerCue: defaultWordsPerCue,
		},
		Images: Images{
			Provider:    defaultImageProvider,
			Endpoint:    defaultHFEndpoint,
			OpenAIModel: defaultOpenAIImageName,
			Width:       defaultImageWidth,
			Height:      defaultImageHeight,
			Concurrency: defaultImageConcurrency,
		},
		Render: Render{
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
			Width:            defaultRenderWidth,
			Height:           defaultRenderHeight,
			FPS:              defaultRenderFPS,
			MaxZoom:          defaultMaxZoom,
			Preset:           defaultRenderPreset,
			CRF:              defaultRenderCRF,
			SubtitleMaxChars: defaultSubtitleMaxChars,
			SubtitleFont:     defaultSubtitleFont,
			SubtitleFontSize: defaultSubtitleFontSize,
		},
		Storage: Storage{
			Prefix:             defaultStoragePrefix,
			PresignExpiryHours: defaultPresignExpiryHours,
		},
		Distribution: Distribution{
			Privacy:        defaultPrivacy,
			CategoryID:     defaultCategoryID,
			Tags:           []string{"news", "shorts"},
			FallbackPolicy: defaultFallbackPolicy,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Review:         true,
			Errors:         true,
			Fallback:       true,
			Distributed:    true,
		},
		API: API{
			Enabled: true,
			Bind:    defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
