package render

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// bitexact strips encoder version strings and timestamps so identical inputs
// produce identical bytes.
var bitexact = []string{"-fflags", "+bitexact", "-flags:v", "+bitexact", "-map_metadata", "-1"}

// SegmentArgs builds the ffmpeg arguments that render one still image into a
// pan-zoom clip of seg.Frames frames.
func SegmentArgs(s Settings, seg Segment, start, end Framing, output string) []string {
	// Oversample before zoompan; zoompan rounds the crop origin to whole
	// pixels and jitters at output resolution.
	ow, oh := s.Width*2, s.Height*2
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,zoompan=%s:d=%d:s=%dx%d:fps=%d,format=yuv420p",
		ow, oh, ow, oh, zoompanExpr(seg.Frames, start, end), seg.Frames, s.Width, s.Height, s.FPS,
	)
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", seg.ImagePath,
		"-vf", filter,
		"-frames:v", strconv.Itoa(seg.Frames),
		"-r", strconv.Itoa(s.FPS),
		"-c:v", "libx264", "-preset", s.Preset, "-crf", strconv.Itoa(s.CRF),
		"-pix_fmt", "yuv420p", "-threads", "1",
	}
	args = append(args, bitexact...)
	return append(args, output)
}

// zoompanExpr renders PanZoom as zoompan z/x/y expressions over the output
// frame number "on".
func zoompanExpr(frames int, start, end Framing) string {
	progress := "1"
	if frames > 1 {
		progress = fmt.Sprintf("min(on/%d,1)", frames-1)
	}
	eased := fmt.Sprintf("(%[1]s*%[1]s*(3-2*%[1]s))", progress)
	zoom := fmt.Sprintf("max(1,%s+(%s)*%s)", num(start.Zoom), num(end.Zoom-start.Zoom), eased)
	cx := fmt.Sprintf("(%s+(%s)*%s)", num(start.CenterX), num(end.CenterX-start.CenterX), eased)
	cy := fmt.Sprintf("(%s+(%s)*%s)", num(start.CenterY), num(end.CenterY-start.CenterY), eased)
	// zoompan exposes the current zoom as "zoom" in the x and y expressions.
	x := fmt.Sprintf("iw*max(0,min(%s-0.5/zoom,1-1/zoom))", cx)
	y := fmt.Sprintf("ih*max(0,min(%s-0.5/zoom,1-1/zoom))", cy)
	return fmt.Sprintf("z='%s':x='%s':y='%s'", zoom, x, y)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// ConcatList renders a concat demuxer playlist for the segment files.
func ConcatList(paths []string) string {
	var b strings.Builder
	for _, path := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(path, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// ConcatArgs joins rendered segments without re-encoding.
func ConcatArgs(listPath, output string) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy",
	}
	args = append(args, bitexact...)
	return append(args, output)
}

// MuxArgs adds the narration, burns in subtitles, and cuts the result to the
// narration length.
func MuxArgs(s Settings, videoPath, audioPath, srtPath string, narration float64, output string) []string {
	filter := fmt.Sprintf("subtitles=filename='%s':force_style='%s'", escapeFilterPath(srtPath), s.ForceStyle())
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-vf", filter,
		"-c:v", "libx264", "-preset", s.Preset, "-crf", strconv.Itoa(s.CRF),
		"-pix_fmt", "yuv420p", "-threads", "1",
		"-c:a", "aac", "-b:a", "192k",
		"-t", num(narration),
		"-flags:a", "+bitexact",
		"-movflags", "+faststart",
		"-f", "mp4",
	}
	args = append(args, bitexact...)
	return append(args, output)
}

// escapeFilterPath escapes a path for use inside a quoted filter option.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	return replacer.Replace(path)
}
