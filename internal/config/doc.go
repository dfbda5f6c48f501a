// Package config loads, normalizes, and validates livemon configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the LIVEMON_SOURCES environment
// fallback for root source URLs. The Config type centralizes every knob the
// refresh, probe, and persistence components need: root URLs and the ignore
// set, JSON key-name mapping, per-tier timeouts, worker and batch sizes, and
// the staleness threshold.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
