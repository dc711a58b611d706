// Package config loads, normalizes, and validates checkrecon configuration.
//
// Values come from built-in defaults, then an optional TOML file, then
// CHECKRECON_* environment variables. Paths derived from data_dir are filled
// in during normalization and every path is expanded to an absolute form.
package config
