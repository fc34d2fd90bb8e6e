// Package narration implements the audio stage. It synthesizes the script
// once, measures the mp3 with ffprobe, and turns word speech marks into
// normalized subtitle cues. A speech.json record beside the audio lets a retry
// reuse audio that was already billed.
package narration
