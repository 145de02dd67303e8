// Package config loads, normalizes, and validates rsextract configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files (or YAML when the file extension says so), and
// honours the RSEXTRACT_SERIAL_1/RSEXTRACT_SERIAL_2 environment overrides.
// Validation refuses the placeholder camera serial so a fresh install never
// silently matches no recordings.
package config
