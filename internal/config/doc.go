// Package config loads, normalizes, and validates fieldtag configuration
// from TOML files.
package config
