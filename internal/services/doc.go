// Package services defines shared utilities consumed by the pipeline stage
// executors and their provider clients.
//
// Key responsibilities:
//   - Trace, the job/stage/lease owner/request ID record that rides on a
//     context so log lines can be tagged far from where the job was claimed.
//   - The failure taxonomy: sentinel markers, the Wrap helper, and KindOf,
//     which turns any stage error into the Kind the workflow manager uses to
//     pick between retry, manual review, and terminal failure.
//
// Provider clients live in subpackages (llm, tts, imagegen, objectstore,
// youtube). Each one returns errors already tagged with a marker so executors
// rarely need to classify failures themselves.
package services
