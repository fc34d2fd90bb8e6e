// Package notifications delivers workflow events to ntfy.
//
// Events cover the outcomes an operator acts on: a job parked for review, a
// terminal failure, an upload that fell back to manual distribution, and a
// successful publish. Each event can be disabled in the notifications config
// section. With no topic configured the service is a no-op, except that the
// fallback event reports ErrNotConfigured so the distribution stage can record
// that nobody was told about the video.
package notifications
