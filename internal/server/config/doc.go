// Package config holds the jsonkeep-server configuration: the
// ServerConfig tree, built-in defaults, semantic validation and
// log-safe sanitization.
//
// Values are read through internal/infra/confloader, which layers a
// YAML file under JSONKEEP_-prefixed environment variables.
//
// @req RQ-0502
// @design DS-0502
package config
