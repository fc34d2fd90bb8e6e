package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"newsreel/internal/services"
	"newsreel/internal/services/awsutil"
	"newsreel/internal/subtitles"
)

// maxTextLength is the Polly SynthesizeSpeech limit on billed characters.
const maxTextLength = 3000

// SynthesizeAPI is the subset of the Polly client used here.
type SynthesizeAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Config selects the voice used for narration.
type Config struct {
	Region  string
	VoiceID string
	Engine  string
}

// Client synthesizes narration audio and word timings.
type Client struct {
	api SynthesizeAPI
	cfg Config
}

// Speech is one synthesized narration.
type Speech struct {
	Audio []byte
	Marks []subtitles.SpeechMark
}

// NewClient builds a Polly client from the SDK default credential chain.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsutil.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "audio", "load aws config", "", err)
	}
	return NewWithAPI(polly.NewFromConfig(awsCfg), cfg), nil
}

// NewWithAPI wraps an existing Polly API implementation.
func NewWithAPI(api SynthesizeAPI, cfg Config) *Client {
	return &Client{api: api, cfg: cfg}
}

// Synthesize renders the narration as mp3 and requests word speech marks for
// the same text, voice, and engine so the timings line up with the audio.
func (c *Client) Synthesize(ctx context.Context, text string) (Speech, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Speech{}, services.Wrap(services.ErrMalformedOutput, "audio", "synthesize", "narration text is empty", nil)
	}
	if n := len([]rune(text)); n > maxTextLength {
		return Speech{}, services.Wrap(services.ErrMalformedOutput, "audio", "synthesize",
			fmt.Sprintf("narration has %d characters (limit %d)", n, maxTextLength), nil)
	}

	audio, err := c.call(ctx, c.input(text, types.OutputFormatMp3))
	if err != nil {
		return Speech{}, awsutil.Classify(services.ErrMalformedOutput, "audio", "synthesize audio", err)
	}
	if len(audio) == 0 {
		return Speech{}, services.Wrap(services.ErrTransientExternal, "audio", "synthesize audio", "empty audio stream", nil)
	}

	marksInput := c.input(text, types.OutputFormatJson)
	marksInput.SpeechMarkTypes = []types.SpeechMarkType{types.SpeechMarkTypeWord}
	rawMarks, err := c.call(ctx, marksInput)
	if err != nil {
		return Speech{}, awsutil.Classify(services.ErrMalformedOutput, "audio", "synthesize speech marks", err)
	}
	marks, err := subtitles.ParseSpeechMarks(bytes.NewReader(rawMarks))
	if err != nil {
		return Speech{}, services.Wrap(services.ErrMalformedOutput, "audio", "parse speech marks", "", err)
	}
	return Speech{Audio: audio, Marks: marks}, nil
}

func (c *Client) input(text string, format types.OutputFormat) *polly.SynthesizeSpeechInput {
	input := &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		OutputFormat: format,
		VoiceId:      types.VoiceId(c.cfg.VoiceID),
	}
	if c.cfg.Engine != "" {
		input.Engine = types.Engine(c.cfg.Engine)
	}
	return input
}

func (c *Client) call(ctx context.Context, input *polly.SynthesizeSpeechInput) ([]byte, error) {
	if c.api == nil {
		return nil, errors.New("polly client not configured")
	}
	out, err := c.api.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, err
	}
	if out.AudioStream == nil {
		return nil, nil
	}
	defer out.AudioStream.Close()
	data, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read audio stream: %w", err)
	}
	return data, nil
}
