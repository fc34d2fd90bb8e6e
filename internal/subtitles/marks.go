package subtitles

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// lastCueTail keeps the final caption up briefly after its last word starts.
const lastCueTail = 400 * time.Millisecond

// SpeechMark is one entry of a text-to-speech speech-mark stream.
type SpeechMark struct {
	Time  time.Duration
	Type  string
	Value string
}

type rawSpeechMark struct {
	Time  int64  `json:"time"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ParseSpeechMarks reads newline-delimited JSON speech marks, as returned by
// Polly's json speech-mark output format. Blank lines are skipped.
func ParseSpeechMarks(r io.Reader) ([]SpeechMark, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var marks []SpeechMark
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var raw rawSpeechMark
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("speech mark line %d: %w", line, err)
		}
		marks = append(marks, SpeechMark{
			Time:  time.Duration(raw.Time) * time.Millisecond,
			Type:  raw.Type,
			Value: raw.Value,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read speech marks: %w", err)
	}
	return marks, nil
}

// FromSpeechMarks groups word marks into upper-cased cues of wordsPerCue
// words. Each cue ends where the next begins; the last ends lastCueTail after
// its start, clamped to narration.
func FromSpeechMarks(marks []SpeechMark, wordsPerCue int, narration time.Duration) []Cue {
	if wordsPerCue <= 0 {
		wordsPerCue = 1
	}
	words := make([]SpeechMark, 0, len(marks))
	for _, mark := range marks {
		if mark.Type != "word" || strings.TrimSpace(mark.Value) == "" {
			continue
		}
		words = append(words, mark)
	}
	if len(words) == 0 {
		return nil
	}

	cues := make([]Cue, 0, (len(words)+wordsPerCue-1)/wordsPerCue)
	for i := 0; i < len(words); i += wordsPerCue {
		end := min(i+wordsPerCue, len(words))
		parts := make([]string, 0, end-i)
		for _, word := range words[i:end] {
			parts = append(parts, strings.ToUpper(strings.TrimSpace(word.Value)))
		}
		cues = append(cues, Cue{Start: words[i].Time, Text: strings.Join(parts, " ")})
	}
	for i := range cues {
		if i+1 < len(cues) {
			cues[i].End = cues[i+1].Start
			continue
		}
		cues[i].End = words[len(words)-1].Time + lastCueTail
		if narration > 0 && cues[i].End > narration {
			cues[i].End = narration
		}
	}
	return cues
}
