// Package config loads the nutrilog settings from YAML, .env and the
// environment.
package config
