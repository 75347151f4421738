// Package config loads, normalizes, and validates the TOML configuration
// that drives the airpost pipeline.
package config
