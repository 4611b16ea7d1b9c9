// Package config loads the tensorvault command configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// TENSORVAULT_* environment variables. The result is validated with struct
// tags before use.
package config
