// Package config handles configuration loading and management for hitscript.
//
// It provides functionality for:
//   - Loading configuration from .hitscript.yaml or hitscript.config.json files
//   - Default configuration values
//   - Merging command line overrides on top of file settings
package config
