// Package workflow advances jobs through the pipeline stages.
//
// The Manager walks the stages in order (script, audio, images, assembly,
// distribution). For each stage it claims eligible jobs from the store under
// its own lease owner ID and hands them to stageexec, which runs the executor
// and records a commit or a classified failure. Several managers may share
// one store; the claim query guarantees that no two of them hold the same job.
//
// RunCycle is one pass over the stages, Run repeats cycles until nothing moves
// or workflow.max_iterations is reached, and Start runs Run on the poll
// interval until Stop. Expired leases are released at the start of every
// cycle so jobs held by a crashed worker become claimable again.
//
// Add a stage by extending StageSet and the queue pipeline table; this package
// is the authoritative home for that coordination logic.
package workflow
