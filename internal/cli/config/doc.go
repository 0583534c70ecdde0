// Package config provides CLI configuration for JsonKeep.
//
// This package defines CLI-specific configuration:
//
//   - spec.go: CLIConfig struct (~/.jsonkeep/cli.yaml)
//   - loader.go: YAML loading and saving
//
// Configuration includes:
//
//   - Default server address and API key credentials
//   - Output format preference (table, json, yaml)
//   - Saved connection profiles
//
// Flag and JSONKEEP_* environment overrides are resolved by the
// command layer on top of the loaded file.
//
// @design DS-0601
package config
