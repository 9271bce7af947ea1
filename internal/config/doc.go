// Package config loads, validates, and normalizes quill's TOML
// configuration. Values resolve in order: built-in defaults, the config
// file, then environment variables (optionally seeded from a .env file).
package config
