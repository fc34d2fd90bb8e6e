package render

import (
	"fmt"

	"newsreel/internal/config"
)

// Settings controls encoding and subtitle styling.
type Settings struct {
	FFmpegBinary     string  `json:"-"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	FPS              int     `json:"fps"`
	MaxZoom          float64 `json:"max_zoom"`
	Preset           string  `json:"preset"`
	CRF              int     `json:"crf"`
	SubtitleMaxChars int     `json:"subtitle_max_chars"`
	SubtitleFont     string  `json:"subtitle_font"`
	SubtitleFontSize int     `json:"subtitle_font_size"`
}

// SettingsFromConfig maps the render config section onto Settings.
func SettingsFromConfig(cfg config.Render) Settings {
	return Settings{
		FFmpegBinary:     cfg.FFmpegBinary,
		Width:            cfg.Width,
		Height:           cfg.Height,
		FPS:              cfg.FPS,
		MaxZoom:          cfg.MaxZoom,
		Preset:           cfg.Preset,
		CRF:              cfg.CRF,
		SubtitleMaxChars: cfg.SubtitleMaxChars,
		SubtitleFont:     cfg.SubtitleFont,
		SubtitleFontSize: cfg.SubtitleFontSize,
	}
}

// ForceStyle returns the libass style override: bold yellow text with a thick
// black outline, centred on the frame.
func (s Settings) ForceStyle() string {
	return fmt.Sprintf(
		"Fontname=%s,Fontsize=%d,PrimaryColour=&H00FFFF,OutlineColour=&H000000,BorderStyle=1,Outline=4,Shadow=0,Alignment=5",
		s.SubtitleFont, s.SubtitleFontSize,
	)
}
