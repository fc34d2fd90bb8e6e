package narration

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"newsreel/internal/fileutil"
	"newsreel/internal/logging"
	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/services/tts"
	"newsreel/internal/stage"
	"newsreel/internal/subtitles"
)

const (
	audioFile = "narration.mp3"
	marksFile = "speech.json"
	srtFile   = "narration.srt"
)

// Synthesizer renders narration text to audio plus word timings.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (tts.Speech, error)
}

// DurationProber measures an audio file.
type DurationProber interface {
	AudioDuration(ctx context.Context, path string) (time.Duration, error)
}

// Options configures the audio stage.
type Options struct {
	// Dir returns the per-job output directory.
	Dir         func(jobID int64) string
	Voice       string
	WordsPerCue int
}

// Executor synthesizes narration audio and builds subtitle cues.
type Executor struct {
	synth  Synthesizer
	prober DurationProber
	opts   Options
	logger *slog.Logger
}

// New constructs the audio stage.
func New(synth Synthesizer, prober DurationProber, opts Options) *Executor {
	if opts.WordsPerCue <= 0 {
		opts.WordsPerCue = 3
	}
	return &Executor{synth: synth, prober: prober, opts: opts, logger: logging.NewNop()}
}

// loggerFor returns the per-job logger stageexec attached to ctx.
func (e *Executor) loggerFor(ctx context.Context) *slog.Logger {
	return logging.NewComponentLogger(logging.FromContext(ctx, e.logger), "narration")
}

// speechRecord is persisted beside the audio so a retried stage can reuse a
// synthesis it already paid for.
type speechRecord struct {
	TextDigest  string                 `json:"text_digest"`
	Voice       string                 `json:"voice"`
	AudioDigest string                 `json:"audio_digest"`
	Marks       []subtitles.SpeechMark `json:"marks"`
}

// Run synthesizes the job's script.
func (e *Executor) Run(ctx context.Context, job *queue.Job) (stage.Result, error) {
	logger := e.loggerFor(ctx)
	if e.synth == nil || e.prober == nil || e.opts.Dir == nil {
		return stage.Result{}, services.Wrap(services.ErrConfiguration, "audio", "synthesize", "audio stage not configured", nil)
	}
	text := strings.TrimSpace(job.Script)
	if text == "" {
		return stage.Result{}, services.Wrap(services.ErrAssetMissing, "audio", "synthesize", "job has no script", nil)
	}

	dir := e.opts.Dir(job.ID)
	audioPath := filepath.Join(dir, audioFile)
	recordPath := filepath.Join(dir, marksFile)
	textDigest := fileutil.DigestBytes([]byte(e.opts.Voice + "\x00" + text))

	marks, reused := e.reuse(logger, audioPath, recordPath, textDigest)
	if !reused {
		speech, err := e.synth.Synthesize(ctx, text)
		if err != nil {
			return stage.Result{}, err
		}
		if err := fileutil.WriteAtomic(audioPath, speech.Audio, 0o644); err != nil {
			return stage.Result{}, services.Wrap(services.ErrConfiguration, "audio", "write audio", audioPath, err)
		}
		record := speechRecord{
			TextDigest:  textDigest,
			Voice:       e.opts.Voice,
			AudioDigest: fileutil.DigestBytes(speech.Audio),
			Marks:       speech.Marks,
		}
		if err := fileutil.WriteJSON(recordPath, record); err != nil {
			logging.WarnWithContext(logger, "failed to persist speech marks", "speech_record_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "a retry will synthesize again"),
			)
		}
		marks = speech.Marks
	} else {
		logger.Info("reusing synthesized narration",
			logging.String(logging.FieldEventType, "narration_reused"),
			logging.String("audio_path", audioPath),
		)
	}

	duration, err := e.prober.AudioDuration(ctx, audioPath)
	if err != nil {
		if ctx.Err() != nil {
			return stage.Result{}, ctx.Err()
		}
		return stage.Result{}, services.Wrap(services.ErrMalformedOutput, "audio", "probe audio", audioPath, err)
	}

	cues := subtitles.FromSpeechMarks(marks, e.opts.WordsPerCue, duration)
	cues = subtitles.Normalize(cues, duration)
	if len(cues) == 0 {
		return stage.Result{}, services.Wrap(services.ErrMalformedOutput, "audio", "build cues", "speech marks produced no word cues", nil)
	}
	if err := subtitles.WriteSRTFile(filepath.Join(dir, srtFile), cues); err != nil {
		logger.Debug("srt sidecar not written", logging.Error(err))
	}

	logger.Info("narration ready",
		logging.String(logging.FieldEventType, "narration_ready"),
		logging.Duration("duration", duration),
		logging.Int("cues", len(cues)),
		logging.Bool("reused", reused),
	)
	return stage.Result{
		Status: queue.StatusAudioReady,
		Output: queue.Output{AudioPath: audioPath, AudioDuration: duration, Cues: cues},
	}, nil
}

func (e *Executor) reuse(logger *slog.Logger, audioPath, recordPath, textDigest string) ([]subtitles.SpeechMark, bool) {
	var record speechRecord
	if err := fileutil.ReadJSON(recordPath, &record); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Debug("speech record unreadable", logging.Error(err))
		}
		return nil, false
	}
	if record.TextDigest != textDigest || len(record.Marks) == 0 {
		return nil, false
	}
	digest, err := fileutil.Digest(audioPath)
	if err != nil || digest != record.AudioDigest {
		return nil, false
	}
	return record.Marks, true
}

// HealthCheck reports whether the synthesizer and prober are wired.
func (e *Executor) HealthCheck(context.Context) stage.Health {
	if e.synth == nil {
		return stage.Unhealthy("audio", "speech synthesizer not configured")
	}
	if e.prober == nil {
		return stage.Unhealthy("audio", "ffprobe not configured")
	}
	return stage.Healthy("audio")
}
