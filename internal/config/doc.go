// Package config loads and validates fieldcap configuration from a TOML
// file, environment overrides, and built-in defaults.
package config
