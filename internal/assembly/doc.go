// Package assembly implements the assembly stage. It hands the job's images,
// narration and cues to the render engine, checks the result with ffprobe,
// and mirrors the video to object storage when storage is enabled.
package assembly
