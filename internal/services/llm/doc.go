// Package llm provides the chat completion client used for script generation.
//
// The client speaks the OpenAI chat completions API in JSON mode. It holds an
// ordered model waterfall: when a model answers 429 (quota) or 503 (overload)
// the request moves to the next model. Only when every model is exhausted does
// the failure surface, tagged services.ErrTransientExternal, so the workflow
// manager schedules a stage retry with backoff.
//
// The SDK's own retries are disabled; retry pacing belongs to the job store.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive the JSON payload.
// Client.HealthCheck: verify the API key and first model.
// DecodeLLMJSON: decode a payload, tolerating code fences and surrounding prose.
package llm
