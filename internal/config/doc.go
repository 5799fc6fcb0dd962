// Package config loads, normalizes, and validates articlesync configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ARTICLESYNC_API_TOKEN. An optional dotenv file next to the default config is
// loaded before fallbacks are consulted so secrets can stay out of the TOML.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
