// Package config loads, normalizes, and validates newsreel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env credential file, and honours
// environment fallbacks such as OPENAI_API_KEY and HF_TOKEN. The Config type
// centralizes every knob the daemon and CLI need, from per-stage retry budgets
// to ffmpeg render settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
