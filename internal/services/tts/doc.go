// Package tts wraps Amazon Polly for narration synthesis.
//
// Synthesize makes two billed calls with identical text and voice: one for the
// mp3 stream and one for newline-delimited word speech marks. The marks are
// parsed into subtitles.SpeechMark values so the narration stage can build cues
// without a second timing source. AWS errors are classified through awsutil.
package tts
