// Package main provides the entry point for jsonkeep-server.
//
// The server is the JsonKeep service that provides:
//
//   - HTTP/HTTPS API for store, key-value and snapshot management
//   - Redis-compatible protocol for drop-in client access
//   - API key authentication with role-based permissions
//   - Prometheus metrics on /metrics
//
// Usage:
//
//	jsonkeep-server [flags]
//	jsonkeep-server --config /path/to/config.yaml
//
// The server loads configuration, initializes the store catalog and
// keyring, and starts all configured listeners.
//
// @design DS-0501
package main
