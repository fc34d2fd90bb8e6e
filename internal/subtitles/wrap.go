package subtitles

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Wrap breaks text into lines no wider than maxWidth display cells. Words are
// kept whole where they fit; a single word wider than the limit is split.
// Wide (CJK) runes count as two cells.
func Wrap(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWidth <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var lines []string
	var current strings.Builder
	width := 0
	flush := func() {
		if current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
			width = 0
		}
	}
	for _, word := range words {
		for _, piece := range splitWide(word, maxWidth) {
			pieceWidth := runewidth.StringWidth(piece)
			if width > 0 && width+1+pieceWidth > maxWidth {
				flush()
			}
			if width > 0 {
				current.WriteByte(' ')
				width++
			}
			current.WriteString(piece)
			width += pieceWidth
		}
	}
	flush()
	return lines
}

// WrapCues applies Wrap to each cue's text, joining lines with newlines.
func WrapCues(cues []Cue, maxWidth int) []Cue {
	out := make([]Cue, len(cues))
	for i, cue := range cues {
		out[i] = cue
		out[i].Text = strings.Join(Wrap(cue.Text, maxWidth), "\n")
	}
	return out
}

func splitWide(word string, maxWidth int) []string {
	if runewidth.StringWidth(word) <= maxWidth {
		return []string{word}
	}
	var pieces []string
	var current strings.Builder
	width := 0
	for _, r := range word {
		w := runewidth.RuneWidth(r)
		if width > 0 && width+w > maxWidth {
			pieces = append(pieces, current.String())
			current.Reset()
			width = 0
		}
		current.WriteRune(r)
		width += w
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}
