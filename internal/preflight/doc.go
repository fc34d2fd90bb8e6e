// Package preflight provides readiness checks for the filesystem paths,
// binaries, and credentials newsreel depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunFeatureChecks before the daemon starts
//     claiming jobs. A failed check keeps the daemon from starting so jobs are
//     not burned through their retry budget against a broken host.
//   - The CLI "newsreel check" command uses the individual check functions and
//     adds remote probes (CheckLLM) to display service health.
//
// Checks for optional features are gated by their config toggle.
package preflight
