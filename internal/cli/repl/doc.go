// Package repl provides interactive mode for the JsonKeep CLI.
//
// This package implements the Read-Eval-Print Loop for interactive sessions:
//
//   - repl.go: Main loop, line splitting and command dispatch
//   - completer.go: Completion for command prefixes
//   - history.go: Command history persistence (~/.jsonkeep/history)
//
// Commands typed at the jsonkeep> prompt run through the same command
// tree as one-shot invocations, so flags and output formats behave
// identically in both modes.
//
// @design DS-0602
package repl
