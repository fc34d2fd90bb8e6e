package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPack []byte

const (
	// UnknownSource stands in for a missing news source in the narration.
	UnknownSource = "verified sources"
	// UnknownDate stands in for a missing publication date.
	UnknownDate = "recently"
)

// Pack holds every prompt the pipeline sends to a generator.
type Pack struct {
	Script ScriptPrompts `yaml:"script"`
	Images ImagePrompts  `yaml:"images"`

	user *template.Template
}

// ScriptPrompts are the chat prompts for narration scripts. User is a
// text/template rendered with ScriptInput.
type ScriptPrompts struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// ImagePrompts decorate each visual prompt before image generation.
type ImagePrompts struct {
	StyleSuffix    string `yaml:"style_suffix"`
	NegativePrompt string `yaml:"negative_prompt"`
}

// ScriptInput is the data available to the user prompt template.
type ScriptInput struct {
	Title      string
	Content    string
	Source     string
	Date       string
	ImageCount int
}

// Default returns the embedded prompt pack.
func Default() (*Pack, error) {
	var pack Pack
	if err := yaml.Unmarshal(defaultPack, &pack); err != nil {
		return nil, fmt.Errorf("parse embedded prompts: %w", err)
	}
	return pack.compile()
}

// Load returns the embedded pack with any fields set in the file at path
// replacing the defaults. An empty path returns the defaults.
func Load(path string) (*Pack, error) {
	pack, err := Default()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return pack, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	var override Pack
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	merged := Pack{
		Script: ScriptPrompts{
			System: firstSet(override.Script.System, pack.Script.System),
			User:   firstSet(override.Script.User, pack.Script.User),
		},
		Images: ImagePrompts{
			StyleSuffix:    firstSet(override.Images.StyleSuffix, pack.Images.StyleSuffix),
			NegativePrompt: firstSet(override.Images.NegativePrompt, pack.Images.NegativePrompt),
		},
	}
	return merged.compile()
}

func (p Pack) compile() (*Pack, error) {
	if strings.TrimSpace(p.Script.System) == "" || strings.TrimSpace(p.Script.User) == "" {
		return nil, fmt.Errorf("prompts: script.system and script.user are required")
	}
	tmpl, err := template.New("script.user").Option("missingkey=error").Parse(p.Script.User)
	if err != nil {
		return nil, fmt.Errorf("prompts: parse script.user: %w", err)
	}
	p.user = tmpl
	return &p, nil
}

// RenderScript fills the script prompts for one news item. Missing source and
// date fall back to UnknownSource and UnknownDate.
func (p *Pack) RenderScript(in ScriptInput) (system, user string, err error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		in.Content = in.Title
	}
	in.Source = firstSet(in.Source, UnknownSource)
	in.Date = firstSet(in.Date, UnknownDate)
	var buf bytes.Buffer
	if err := p.user.Execute(&buf, in); err != nil {
		return "", "", fmt.Errorf("render script prompt: %w", err)
	}
	return strings.TrimSpace(p.Script.System), strings.TrimSpace(buf.String()), nil
}

// ImagePrompt appends the style suffix to a scene description.
func (p *Pack) ImagePrompt(scene string) string {
	scene = strings.TrimSpace(scene)
	if p.Images.StyleSuffix == "" {
		return scene
	}
	return scene + ", " + strings.TrimSpace(p.Images.StyleSuffix)
}

// NegativePrompt returns the terms image generators should avoid.
func (p *Pack) NegativePrompt() string {
	return strings.TrimSpace(p.Images.NegativePrompt)
}

func firstSet(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
