// Package queue persists pipeline jobs in SQLite or Postgres and enforces
// their lifecycle.
//
// A job moves forward through pending, scripted, audio_ready, images_ready,
// and assembled before ending in distributed or distributed_fallback. Each
// stage claims jobs sitting in its precondition status under a time-bounded
// lease, then either commits its output (advancing the status and writing only
// the columns it owns) or records a failure. Failures bump a per-stage counter
// and schedule an exponential backoff; exhausting the budget parks the job in
// needs_manual_review, and terminal errors move it to failed. Resubmit is the
// only operator action that moves a job backward.
//
// Claims, commits, and failure records are single guarded statements, so two
// workers can never hold or advance the same job. Timestamps are stored as
// fixed-width UTC text to keep string comparison in SQL chronological.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
