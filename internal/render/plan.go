package render

import (
	"fmt"
	"math"

	"newsreel/internal/services"
)

// SegmentInput is one image and its requested on-screen duration in seconds.
type SegmentInput struct {
	ImagePath string
	Duration  float64
}

// Segment is a planned segment with its fitted timing.
type Segment struct {
	Index      int
	ImagePath  string
	Start      float64
	Duration   float64
	StartFrame int
	Frames     int
}

// Plan is the fitted timeline of a video.
type Plan struct {
	Segments    []Segment
	Narration   float64
	FPS         int
	TotalFrames int
}

// EqualSplit divides narration evenly across images.
func EqualSplit(images []string, narration float64) []SegmentInput {
	if len(images) == 0 {
		return nil
	}
	each := narration / float64(len(images))
	out := make([]SegmentInput, len(images))
	for i, path := range images {
		out[i] = SegmentInput{ImagePath: path, Duration: each}
	}
	return out
}

// BuildPlan fits segments to the narration. The last segment is extended or
// trimmed so durations sum to the narration; when the earlier segments alone
// already reach it, every segment is scaled proportionally instead. Frame
// boundaries are the rounded cumulative times, so frame counts always total
// round(narration*fps).
func BuildPlan(segments []SegmentInput, narration float64, fps int) (Plan, error) {
	if len(segments) == 0 {
		return Plan{}, durationError("no segments to plan")
	}
	if narration <= 0 || math.IsNaN(narration) || math.IsInf(narration, 0) {
		return Plan{}, durationError(fmt.Sprintf("narration duration %.3fs is not positive", narration))
	}
	if fps <= 0 {
		return Plan{}, services.Wrap(services.ErrConfiguration, "assembly", "plan", fmt.Sprintf("fps %d is not positive", fps), nil)
	}

	durations := make([]float64, len(segments))
	var total, earlier float64
	for i, seg := range segments {
		if seg.Duration <= 0 || math.IsNaN(seg.Duration) || math.IsInf(seg.Duration, 0) {
			return Plan{}, durationError(fmt.Sprintf("segment %d duration %.3fs is not positive", i, seg.Duration))
		}
		durations[i] = seg.Duration
		total += seg.Duration
		if i < len(segments)-1 {
			earlier += seg.Duration
		}
	}

	last := len(durations) - 1
	if earlier < narration {
		durations[last] = narration - earlier
	} else {
		factor := narration / total
		earlier = 0
		for i := range durations[:last] {
			durations[i] *= factor
			earlier += durations[i]
		}
		durations[last] = narration - earlier
	}

	plan := Plan{
		Narration:   narration,
		FPS:         fps,
		TotalFrames: int(math.Round(narration * float64(fps))),
		Segments:    make([]Segment, len(segments)),
	}
	start := 0.0
	startFrame := 0
	for i, d := range durations {
		endFrame := plan.TotalFrames
		if i < last {
			endFrame = int(math.Round((start + d) * float64(fps)))
		}
		frames := endFrame - startFrame
		if frames <= 0 {
			return Plan{}, durationError(fmt.Sprintf("segment %d (%.3fs) is shorter than one frame", i, d))
		}
		plan.Segments[i] = Segment{
			Index:      i,
			ImagePath:  segments[i].ImagePath,
			Start:      start,
			Duration:   d,
			StartFrame: startFrame,
			Frames:     frames,
		}
		start += d
		startFrame = endFrame
	}
	return plan, nil
}

// Duration returns the summed segment durations.
func (p Plan) Duration() float64 {
	var sum float64
	for _, seg := range p.Segments {
		sum += seg.Duration
	}
	return sum
}

func durationError(message string) error {
	return services.Wrap(services.ErrDurationMismatch, "assembly", "plan", message, nil)
}
