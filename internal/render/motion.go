package render

import "math"

// Framing is a normalized camera position: Zoom >= 1 magnifies the source and
// (CenterX, CenterY) is the focus point in [0,1] source coordinates.
type Framing struct {
	Zoom    float64
	CenterX float64
	CenterY float64
}

// Transform is the crop window for one instant: the window spans 1/Zoom of
// the source in each axis with its top-left corner at (X, Y), all normalized.
type Transform struct {
	Zoom float64
	X    float64
	Y    float64
}

// Affine returns the parameters [a b c d e f] mapping normalized output
// coordinates onto the source: sx = a*ox + b*oy + c, sy = d*ox + e*oy + f.
func (t Transform) Affine() [6]float64 {
	scale := 1 / t.Zoom
	return [6]float64{scale, 0, t.X, 0, scale, t.Y}
}

// PanZoom interpolates between start and end framing. Progress is
// elapsed/duration clamped to [0,1] and eased with smoothstep, so motion is
// monotonic and starts and ends at rest. A non-positive duration yields the
// end framing.
func PanZoom(elapsed, duration float64, start, end Framing) Transform {
	p := 1.0
	if duration > 0 {
		p = clamp(elapsed/duration, 0, 1)
	}
	e := smoothstep(p)
	zoom := math.Max(1, lerp(start.Zoom, end.Zoom, e))
	cx := lerp(start.CenterX, end.CenterX, e)
	cy := lerp(start.CenterY, end.CenterY, e)
	span := 1 / zoom
	return Transform{
		Zoom: zoom,
		X:    clamp(cx-span/2, 0, 1-span),
		Y:    clamp(cy-span/2, 0, 1-span),
	}
}

// FrameTransform returns the transform for frame i of a segment of frames
// frames. It matches the zoompan expressions generated for the segment.
func FrameTransform(i, frames int, start, end Framing) Transform {
	return PanZoom(float64(i), float64(frames-1), start, end)
}

// drift is the horizontal pan applied per segment, cycling left, none, right.
var drift = [3]float64{-0.04, 0, 0.04}

// MotionFor returns the deterministic motion of segment index: even segments
// zoom in from the full frame to maxZoom, odd segments zoom back out, each
// with a small horizontal drift.
func MotionFor(index int, maxZoom float64) (Framing, Framing) {
	if maxZoom < 1 {
		maxZoom = 1
	}
	if index < 0 {
		index = -index
	}
	shift := drift[index%len(drift)]
	wide := Framing{Zoom: 1, CenterX: 0.5, CenterY: 0.5}
	tight := Framing{Zoom: maxZoom, CenterX: 0.5 + shift, CenterY: 0.5}
	if index%2 == 0 {
		return wide, tight
	}
	return tight, wide
}

func smoothstep(p float64) float64 {
	return p * p * (3 - 2*p)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Min(math.Max(v, lo), hi)
}
