// Command newsreel is the operator CLI for the news-to-video pipeline.
//
// It talks to the job store directly rather than through the daemon, so queue
// inspection, manual submission, and one-shot runs work whether or not a
// daemon is running. `newsreel daemon` starts the long-running worker.
package main
