package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"newsreel/internal/config"
	"newsreel/internal/deps"
	"newsreel/internal/services/llm"
)

// MinFreeBytes is the smallest amount of free space a render needs: one
// narration track, a handful of stills, and the encoded video.
const MinFreeBytes uint64 = 64 << 20

// CheckLLM verifies that the chat completion API is reachable and the key is
// valid. It uses a 30-second timeout and probes only the first model.
func CheckLLM(ctx context.Context, name string, cfg config.Script) Result {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	if len(cfg.Models) == 0 {
		return Result{Name: name, Detail: "no models configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Models:      cfg.Models[:1],
		Temperature: cfg.Temperature,
	})
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least min
// bytes available to unprivileged users.
func CheckFreeSpace(name, path string, min uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < min {
		return Result{Name: name, Detail: fmt.Sprintf("%s free, need %s", humanize.IBytes(free), humanize.IBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free", humanize.IBytes(free))}
}

// CheckSystemDeps evaluates the external binaries the pipeline executes. Both
// the daemon and the CLI check command use this so the requirement list lives
// in one place.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, deps.RenderRequirements(cfg.Render.FFmpegBinary, cfg.Render.FFprobeBinary))
}

// CheckCredentials reports provider credentials that are required by the
// enabled features but missing from the config and environment.
func CheckCredentials(cfg *config.Config) []Result {
	results := []Result{
		presence("Script API key", cfg.Script.APIKey, "set script.api_key or OPENAI_API_KEY"),
	}
	hint := "set images.token or HF_TOKEN"
	if cfg.Images.Provider == config.ImageProviderOpenAI {
		hint = "set images.token or script.api_key"
	}
	results = append(results, presence("Image API token", cfg.Images.Token, hint))
	if cfg.Storage.Enabled {
		results = append(results, presence("Storage bucket", cfg.Storage.Bucket, "set storage.bucket or S3_BUCKET_NAME"))
	}
	if cfg.Distribution.Enabled {
		results = append(results, presence("YouTube refresh token", cfg.Distribution.RefreshToken, "set distribution.refresh_token or YOUTUBE_REFRESH_TOKEN"))
	}
	return results
}

func presence(name, value, hint string) Result {
	if strings.TrimSpace(value) == "" {
		return Result{Name: name, Detail: "missing (" + hint + ")"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
