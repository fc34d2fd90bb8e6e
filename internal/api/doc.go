// Package api serves the manual submission HTTP interface and defines the
// wire-format types it returns. It translates internal queue models into
// transport-friendly DTOs so CLI and HTTP consumers render jobs without
// coupling to internal types.
//
// # Routes
//
//	POST /api/jobs/manual            queue a story (201, or 409 for a known URL)
//	GET  /api/jobs?status=...        list jobs
//	GET  /api/jobs/{id}              show one job
//	POST /api/jobs/{id}/resubmit     return a failed or reviewed job to the pipeline
//	GET  /api/status                 workflow state, queue counts, stage health
//	GET  /healthz                    liveness, never authenticated
//
// Every /api route requires "Authorization: Bearer <token>" when a token is
// configured.
//
// # Design Notes
//
// Job DTOs use camelCase JSON tags. The manual submission body keeps the
// snake_case field names existing producers already send (source_name).
// Timestamps use RFC3339 with milliseconds.
package api
