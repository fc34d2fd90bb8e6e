package subtitles

import (
	"time"
)

// Cue is one caption shown between Start and End, measured from the start of
// the narration.
type Cue struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Duration returns how long the cue stays on screen.
func (c Cue) Duration() time.Duration {
	return c.End - c.Start
}
