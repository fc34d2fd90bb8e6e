// Package distribution implements the final stage: upload the assembled
// video to YouTube, or, when the upload fails, tell an operator where the
// file is.
//
// The fallback notice is sent once per failed upload. Under the retry_once
// policy a failed notice is re-sent a single time; under fire_and_forget it
// is not. Either way the job finishes distributed_fallback and records
// whether the operator was reached.
package distribution
