// Package confloader provides configuration loading mechanism.
//
// This package implements the server configuration loader on top of
// koanf. Sources merge in priority order so an operator can layer a
// YAML file under JSONKEEP_* environment overrides:
//
//  1. Command-line flags (applied by the caller via LoadMap)
//  2. Environment variables (JSONKEEP_ prefix)
//  3. Configuration file (YAML)
//  4. Default values (the pre-populated target struct)
//
// The companion Watcher reloads on config file changes so settings
// like the log level can follow file edits without a restart.
//
// @design DS-0502
// @adr AD-0501
package confloader
