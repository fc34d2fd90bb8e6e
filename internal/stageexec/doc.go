// Package stageexec runs one pipeline stage against a claimed job.
//
// Run applies the stage deadline, keeps the lease alive with a heartbeat,
// recovers executor panics, and turns the outcome into a Commit or a Fail on
// the job store. Unclassified errors and deadlines count as transient
// external failures; malformed output retries are capped separately from the
// stage maximum. Review and failed outcomes publish ntfy events.
package stageexec
