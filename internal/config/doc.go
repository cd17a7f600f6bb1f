// Package config loads, normalizes, and validates mmproteo configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts) and reads TOML files. The Config type centralizes every knob the
// CLI and the processing stages need so the storage directory, listing
// sources and worker settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
