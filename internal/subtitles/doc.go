// Package subtitles builds, normalizes, wraps, and serializes the burned-in
// captions of a rendered video.
//
// Cues start life as text-to-speech word speech marks (FromSpeechMarks), are
// normalized against the narration length so they never overlap or run past
// the audio (Normalize), wrapped to the display width of a vertical frame
// (WrapCues), and written as SRT for ffmpeg's subtitles filter (WriteSRT).
package subtitles
