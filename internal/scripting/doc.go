// Package scripting implements the script stage: it renders the prompt pack
// for a news item, asks the model waterfall for a JSON script, and checks the
// result carries narration plus exactly the configured number of visual
// prompts. Malformed model output is tagged services.ErrMalformedOutput so the
// workflow retries it under the malformed cap.
package scripting
