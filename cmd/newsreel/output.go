package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"newsreel/internal/preflight"
	"newsreel/internal/stage"
)

// present writes payload as JSON under --json and otherwise hands stdout to
// human. Story URLs keep their query separators unescaped.
func (c *commandContext) present(cmd *cobra.Command, payload any, human func(out io.Writer) error) error {
	out := cmd.OutOrStdout()
	if !c.JSONMode() {
		return human(out)
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// healthLabelWidth aligns details across preflight and stage rows.
const healthLabelWidth = 26

// healthLine renders one check or stage row, e.g.
//
//	FFmpeg:                    [READY] ffmpeg version 7.1
func healthLine(name string, state stage.State, detail string, colorize bool) string {
	mark := "[" + strings.ToUpper(string(state)) + "]"
	if detail != "" {
		mark += " " + detail
	}
	line := fmt.Sprintf("  %-*s %s", healthLabelWidth, name+":", mark)
	if !colorize {
		return line
	}
	switch state {
	case stage.StateReady:
		return text.FgGreen.Sprint(line)
	case stage.StateDegraded:
		return text.FgYellow.Sprint(line)
	default:
		return text.FgRed.Sprint(line)
	}
}

func preflightState(result preflight.Result) stage.State {
	if result.Passed {
		return stage.StateReady
	}
	return stage.StateUnavailable
}

func sectionHeader(title string, colorize bool) string {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("=", len(title))
	if colorize {
		return text.Bold.Sprint(title) + "\n" + rule
	}
	return title + "\n" + rule
}

func colorEnabled(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
