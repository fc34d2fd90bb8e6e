// Package daemon coordinates the long-running newsreel process.
//
// It wires configuration, the job store, the workflow manager, and the manual
// submission API into a single lifecycle with flock-based locking so only one
// daemon drives a given data directory. Multiple workers sharing a Postgres
// store run as separate processes with separate data directories; the lease
// protocol in the store keeps them apart.
//
// Keep orchestration logic here: individual pipeline steps live in their
// stage packages while the daemon focuses on startup, shutdown, and status.
package daemon
