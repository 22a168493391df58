// Package config defines the fire-sentinel settings and provides helpers to
// load, validate and save them in YAML format.
//
// Load layers three sources: the YAML file, an optional .env file and
// FIRE_SENTINEL_* environment variables. Validate fills defaults for unset
// fields, so a zero Config is runnable once validated.
package config
