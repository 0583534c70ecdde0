// Package tlsroots manages the TLS material JsonKeep endpoints use.
//
// Two concerns live here. The Pool layers custom CA certificates on
// top of the system roots so the CLI can talk to servers behind a
// private CA. The Watcher hot-reloads a server key pair via fsnotify,
// letting operators rotate certificates without a restart.
//
// @design DS-0501
package tlsroots
