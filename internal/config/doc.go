// Package config loads, normalizes, validates, and saves the filescleaner
// TOML configuration.
//
// Decoding is strict: unknown keys anywhere in the file are rejected so a typo
// in a threshold never silently falls back to a default. Directory keys are
// expanded to absolute paths and their sizes resolved against the monitor
// defaults by Config.Watched.
package config
