// Package config loads, normalizes, and validates asrbatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ASRBATCH_CACHE_DIR and WHISPERX_HF_TOKEN. The Config type centralizes every
// knob the batch runner and CLI need: the default engine and output format,
// worker and retry policy, cache location, transcoder binary, and per-engine
// admission limits.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
