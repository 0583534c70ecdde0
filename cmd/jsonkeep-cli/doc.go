// Package main provides the entry point for jsonkeep-cli.
//
// The CLI tool provides command-line access to a JsonKeep server for:
//
//   - Store management (attach, detach, keys, get/set/del)
//   - Snapshot management (create, list)
//   - API key management (create, list, disable, enable, rotate)
//   - Configuration management
//   - System administration
//
// Usage:
//
//	jsonkeep-cli [command] [flags]
//	jsonkeep-cli store keys --store db0 --output json
//	jsonkeep-cli connect http://localhost:5090
//
// The CLI supports both single-command mode and interactive REPL mode.
//
// @design DS-0601
package main
