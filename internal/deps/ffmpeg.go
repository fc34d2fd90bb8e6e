package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFmpegPath returns the ffmpeg binary to execute. An empty
// configuration resolves to "ffmpeg" on PATH.
func ResolveFFmpegPath(configured string) string {
	if binary := strings.TrimSpace(configured); binary != "" {
		return binary
	}
	return "ffmpeg"
}

// ResolveFFprobePath returns the ffprobe binary to execute. When none is
// configured, an ffprobe sitting next to the resolved ffmpeg binary is
// preferred over PATH lookup so both tools come from the same build.
func ResolveFFprobePath(configured, ffmpeg string) string {
	if binary := strings.TrimSpace(configured); binary != "" {
		return binary
	}
	if resolved, err := exec.LookPath(ResolveFFmpegPath(ffmpeg)); err == nil {
		candidate := filepath.Join(filepath.Dir(resolved), executableName("ffprobe"))
		if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
			return candidate
		}
	}
	return "ffprobe"
}

// RenderRequirements lists the binaries video assembly needs.
func RenderRequirements(ffmpeg, ffprobe string) []Requirement {
	ffmpegPath := ResolveFFmpegPath(ffmpeg)
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegPath,
			Purpose:     "video assembly",
			VersionFlag: "-version",
		},
		{
			Name:        "FFprobe",
			Command:     ResolveFFprobePath(ffprobe, ffmpegPath),
			Purpose:     "narration timing and render verification",
			VersionFlag: "-version",
		},
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
