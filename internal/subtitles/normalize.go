package subtitles

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"newsreel/internal/services"
)

// Normalize returns cues ready for rendering: text NFC-normalized with
// collapsed whitespace, empty cues dropped, sorted by start, clamped to
// [0, narration], and trimmed so no two cues overlap. A cue whose window
// collapses to nothing is removed. The input slice is not modified.
func Normalize(cues []Cue, narration time.Duration) []Cue {
	prepared := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		text := cleanText(cue.Text)
		if text == "" {
			continue
		}
		cue.Text = text
		cue.Start = clampDuration(cue.Start, 0, narration)
		cue.End = clampDuration(cue.End, 0, narration)
		prepared = append(prepared, cue)
	}
	sort.SliceStable(prepared, func(i, j int) bool {
		return prepared[i].Start < prepared[j].Start
	})

	out := make([]Cue, 0, len(prepared))
	for _, cue := range prepared {
		if n := len(out); n > 0 && out[n-1].End > cue.Start {
			out[n-1].End = cue.Start
			if out[n-1].End <= out[n-1].Start {
				out = out[:n-1]
			}
		}
		if cue.End > cue.Start {
			out = append(out, cue)
		}
	}
	return out
}

// Validate reports cues that overlap, run backwards, or fall outside
// [0, narration].
func Validate(cues []Cue, narration time.Duration) error {
	for i, cue := range cues {
		if cue.Start < 0 || cue.End > narration {
			return services.Wrap(services.ErrDurationMismatch, "subtitles", "validate",
				fmt.Sprintf("cue %d [%s, %s] outside narration %s", i, cue.Start, cue.End, narration), nil)
		}
		if cue.End <= cue.Start {
			return services.Wrap(services.ErrDurationMismatch, "subtitles", "validate",
				fmt.Sprintf("cue %d has non-positive duration", i), nil)
		}
		if i > 0 && cues[i-1].End > cue.Start {
			return services.Wrap(services.ErrDurationMismatch, "subtitles", "validate",
				fmt.Sprintf("cue %d overlaps cue %d", i, i-1), nil)
		}
	}
	return nil
}

func cleanText(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

func clampDuration(value, lo, hi time.Duration) time.Duration {
	if value < lo {
		return lo
	}
	if hi > 0 && value > hi {
		return hi
	}
	return value
}
