package testsupport

import (
	"time"

	"newsreel/internal/queue"
	"newsreel/internal/subtitles"
)

// SampleOutput returns a minimal valid commit for stage along with the status
// it commits.
func SampleOutput(stage queue.Stage) (queue.Status, queue.Output) {
	switch stage {
	case queue.StageScript:
		return queue.StatusScripted, queue.Output{
			Script:        "Markets rallied today after a surprise rate cut.",
			VisualPrompts: []string{"trading floor at dawn", "central bank facade"},
		}
	case queue.StageAudio:
		return queue.StatusAudioReady, queue.Output{
			AudioPath:     "/tmp/narration.mp3",
			AudioDuration: 4 * time.Second,
			Cues: []subtitles.Cue{
				{Start: 0, End: 2 * time.Second, Text: "MARKETS RALLIED"},
				{Start: 2 * time.Second, End: 4 * time.Second, Text: "AFTER A CUT"},
			},
		}
	case queue.StageImages:
		return queue.StatusImagesReady, queue.Output{
			ImagePaths: []string{"/tmp/image_000.png", "/tmp/image_001.png"},
		}
	case queue.StageAssembly:
		return queue.StatusAssembled, queue.Output{VideoPath: "/tmp/video.mp4"}
	default:
		return queue.StatusDistributed, queue.Output{RemoteID: "yt-123"}
	}
}
