// Package config loads, normalizes, and validates the daemon's configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads an optional TOML file, and honours the environment
// variables spec.md's external-interfaces table names (MEDIA_DIRS, WORKDIR,
// TV_CRF, MOVIE_CRF, and friends). The Config type centralizes every knob the
// daemon and CLI need: media roots, encoding quality per category, scanner
// cadence, recovery tolerances, API bind address, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths, canonical log formats, and clear validation
// errors.
package config
