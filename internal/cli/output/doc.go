// Package output renders jsonkeep-cli command results. A Formatter
// turns a result value into table, JSON, or YAML text; table mode has
// an optional wide variant with extra columns, and the JSON and YAML
// modes exist for scripting. Spinner provides a progress indicator for
// long-running commands.
//
// @design DS-0601
package output
