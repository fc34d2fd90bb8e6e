// Package logging builds the slog loggers newsreel processes share.
//
// Two formats exist. console renders "ts LEVEL component[stage #job]: msg k=v"
// for people tailing newsreel.log; json emits one object per line for log
// shippers. Both drop the values of credential-shaped keys (api_key, token,
// client_secret, ...) and the password part of a dsn.
//
// WithContext tags a logger with the job, stage and lease owner stored on a
// context by the services package. StageLogger applies the per-stage level
// overrides from [logging.stage_overrides].
package logging
