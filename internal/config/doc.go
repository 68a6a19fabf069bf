// Package config loads, normalizes, and validates roomcount configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and checks the counting thresholds before any component is
// built. The Config type holds every knob the service and CLI need.
package config
