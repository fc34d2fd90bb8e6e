// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The narration stage uses AudioDuration to measure synthesized mp3 files,
// and the assembly stage uses Inspect to check the rendered video carries a
// video and an audio stream at the expected frame size.
package ffprobe
