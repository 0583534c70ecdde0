// Package buildinfo reports what binary is running: semantic version,
// git commit, and build timestamp injected through ldflags, plus the Go
// runtime version. Both servers and the CLI surface it through their
// version commands and endpoints.
//
// @design DS-0501
package buildinfo
