package subtitles_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"newsreel/internal/services"
	"newsreel/internal/subtitles"
)

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func TestParseSpeechMarksAndGroup(t *testing.T) {
	raw := `{"time":0,"type":"sentence","start":0,"end":40,"value":"Markets rallied today after a cut."}
{"time":6,"type":"word","start":0,"end":7,"value":"Markets"}
{"time":420,"type":"word","start":8,"end":15,"value":"rallied"}

{"time":900,"type":"word","start":16,"end":21,"value":"today"}
{"time":1300,"type":"word","start":22,"end":27,"value":"after"}
{"time":1650,"type":"word","start":28,"end":29,"value":"a"}
{"time":1800,"type":"word","start":30,"end":33,"value":"cut"}
`
	marks, err := subtitles.ParseSpeechMarks(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseSpeechMarks failed: %v", err)
	}
	if len(marks) != 7 {
		t.Fatalf("expected 7 marks, got %d", len(marks))
	}

	cues := subtitles.FromSpeechMarks(marks, 3, ms(2100))
	want := []subtitles.Cue{
		{Start: ms(6), End: ms(1300), Text: "MARKETS RALLIED TODAY"},
		{Start: ms(1300), End: ms(2100), Text: "AFTER A CUT"},
	}
	if len(cues) != len(want) {
		t.Fatalf("expected %d cues, got %#v", len(want), cues)
	}
	for i := range want {
		if cues[i] != want[i] {
			t.Fatalf("cue %d = %#v, want %#v", i, cues[i], want[i])
		}
	}

	unclamped := subtitles.FromSpeechMarks(marks, 3, 5*time.Second)
	if got := unclamped[len(unclamped)-1].End; got != ms(2200) {
		t.Fatalf("expected last cue to end 400ms after its final word, got %s", got)
	}
}

func TestParseSpeechMarksRejectsGarbage(t *testing.T) {
	if _, err := subtitles.ParseSpeechMarks(strings.NewReader("{not json}\n")); err == nil {
		t.Fatal("expected error for malformed speech mark")
	}
}

func TestNormalize(t *testing.T) {
	narration := 3 * time.Second
	input := []subtitles.Cue{
		{Start: ms(2000), End: ms(4000), Text: "late   cue"},
		{Start: ms(-200), End: ms(900), Text: "first"},
		{Start: ms(500), End: ms(1500), Text: "overlaps first"},
		{Start: ms(1500), End: ms(1800), Text: "   "},
		{Start: ms(1600), End: ms(1600), Text: "zero"},
		{Start: ms(1700), End: ms(2100), Text: "café"},
	}
	original := append([]subtitles.Cue(nil), input...)

	got := subtitles.Normalize(input, narration)
	want := []subtitles.Cue{
		{Start: 0, End: ms(500), Text: "first"},
		{Start: ms(500), End: ms(1500), Text: "overlaps first"},
		{Start: ms(1700), End: ms(2000), Text: "café"},
		{Start: ms(2000), End: ms(3000), Text: "late cue"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d cues, got %#v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cue %d = %#v, want %#v", i, got[i], want[i])
		}
	}
	if err := subtitles.Validate(got, narration); err != nil {
		t.Fatalf("normalized cues failed validation: %v", err)
	}
	for i := range input {
		if input[i] != original[i] {
			t.Fatal("Normalize modified its input")
		}
	}
}

func TestValidateRejectsOverlap(t *testing.T) {
	cues := []subtitles.Cue{
		{Start: 0, End: ms(800), Text: "a"},
		{Start: ms(700), End: ms(900), Text: "b"},
	}
	err := subtitles.Validate(cues, time.Second)
	if !errors.Is(err, services.ErrDurationMismatch) {
		t.Fatalf("expected duration mismatch, got %v", err)
	}
	if err := subtitles.Validate([]subtitles.Cue{{Start: 0, End: 2 * time.Second, Text: "x"}}, time.Second); err == nil {
		t.Fatal("expected cue past narration to fail")
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"fits", "BREAKING NEWS", 16, []string{"BREAKING NEWS"}},
		{"breaks on words", "MARKETS RALLIED AFTER A SURPRISE CUT", 16, []string{"MARKETS RALLIED", "AFTER A SURPRISE", "CUT"}},
		{"splits long word", "SUPERCALIFRAGILISTIC", 8, []string{"SUPERCAL", "IFRAGILI", "STIC"}},
		{"wide runes", "東京都庁 発表", 6, []string{"東京都", "庁", "発表"}},
		{"empty", "   ", 10, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := subtitles.Wrap(tc.text, tc.width)
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("Wrap(%q, %d) = %q, want %q", tc.text, tc.width, got, tc.want)
			}
			for _, line := range got {
				if runewidth.StringWidth(line) > tc.width {
					t.Fatalf("line %q exceeds width %d", line, tc.width)
				}
			}
		})
	}
}

func TestSRTRoundTrip(t *testing.T) {
	cues := subtitles.WrapCues([]subtitles.Cue{
		{Start: ms(0), End: ms(1250), Text: "MARKETS RALLIED TODAY"},
		{Start: ms(1250), End: ms(3_723_004), Text: "AFTER A CUT"},
	}, 16)

	data := subtitles.FormatSRT(cues)
	if !strings.Contains(string(data), "00:00:01,250 --> 01:02:03,004") {
		t.Fatalf("unexpected srt timing:\n%s", data)
	}
	if !strings.Contains(string(data), "MARKETS RALLIED\nTODAY") {
		t.Fatalf("expected wrapped text in srt:\n%s", data)
	}

	parsed, err := subtitles.ParseSRT(data)
	if err != nil {
		t.Fatalf("ParseSRT failed: %v", err)
	}
	if len(parsed) != len(cues) {
		t.Fatalf("expected %d cues, got %d", len(cues), len(parsed))
	}
	for i := range cues {
		if parsed[i] != cues[i] {
			t.Fatalf("cue %d = %#v, want %#v", i, parsed[i], cues[i])
		}
	}

	if _, err := subtitles.ParseSRT([]byte("1\nno timing here\n")); err == nil {
		t.Fatal("expected error for block without timing")
	}
}
