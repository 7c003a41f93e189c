// Package config loads, normalizes, and validates weighstation configuration data.
//
// It supplies repository defaults (9600 baud 8N1 on /dev/ttyUSB0, a 40 unit
// debounce offset, SQLite storage under ~/.local/share/weighstation), expands
// user paths, reads TOML files, and honours environment fallbacks such as
// WEIGHSTATION_RTSP_URL and WEIGHSTATION_POSTGRES_DSN.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
