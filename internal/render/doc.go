// Package render assembles a narrated vertical video from still images.
//
// Each image becomes one segment with a single eased pan-zoom motion. Plan
// fits segment durations to the narration exactly and assigns whole frames,
// PanZoom computes the crop window for any instant, and the ffmpeg zoompan
// expressions are generated from the same math so previews and renders agree.
// Engine.Assemble renders segments, concatenates them, and muxes in the
// narration with burned-in subtitles, writing the result atomically. A
// manifest of input digests lets an identical re-run skip the encode.
package render
