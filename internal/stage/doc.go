// Package stage defines the executor contract shared by the five pipeline
// stages (script, audio, images, assembly, distribution) and the health record
// they report to preflight and status views.
//
// Executors are pure with respect to the job store: they read the claimed job,
// perform their external calls, and return a Result. Claiming, committing, and
// failure bookkeeping belong to stageexec.
package stage
