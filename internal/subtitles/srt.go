package subtitles

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// FormatSRT renders cues as SRT, numbering them from 1.
func FormatSRT(cues []Cue) []byte {
	var buf bytes.Buffer
	for i, cue := range cues {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%d\n%s --> %s\n%s\n", i+1, formatTimestamp(cue.Start), formatTimestamp(cue.End), cue.Text)
	}
	return buf.Bytes()
}

// WriteSRT writes cues as SRT to w.
func WriteSRT(w io.Writer, cues []Cue) error {
	_, err := w.Write(FormatSRT(cues))
	return err
}

// WriteSRTFile writes cues to path.
func WriteSRTFile(path string, cues []Cue) error {
	if err := os.WriteFile(path, FormatSRT(cues), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// ParseSRT reads SRT content back into cues. Blocks without a timing line are
// rejected.
func ParseSRT(data []byte) ([]Cue, error) {
	content := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if content == "" {
		return nil, nil
	}
	blocks := strings.Split(content, "\n\n")
	cues := make([]Cue, 0, len(blocks))
	for i, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		start := 0
		if start < len(lines) && isNumeric(lines[start]) {
			start++
		}
		if start >= len(lines) || !strings.Contains(lines[start], "-->") {
			return nil, fmt.Errorf("srt block %d: missing timing line", i+1)
		}
		parts := strings.Split(lines[start], "-->")
		if len(parts) != 2 {
			return nil, fmt.Errorf("srt block %d: invalid timing line %q", i+1, lines[start])
		}
		from, err := parseTimestamp(parts[0])
		if err != nil {
			return nil, fmt.Errorf("srt block %d: %w", i+1, err)
		}
		to, err := parseTimestamp(parts[1])
		if err != nil {
			return nil, fmt.Errorf("srt block %d: %w", i+1, err)
		}
		text := make([]string, 0, len(lines)-start-1)
		for _, line := range lines[start+1:] {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				text = append(text, trimmed)
			}
		}
		cues = append(cues, Cue{Start: from, End: to, Text: strings.Join(text, "\n")})
	}
	return cues, nil
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

func parseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// Accept a period as the millisecond separator as well as the standard comma.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

func isNumeric(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	_, err := strconv.Atoi(value)
	return err == nil
}
