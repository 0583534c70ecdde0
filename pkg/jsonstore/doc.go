// Package jsonstore implements a single-file JSON-backed key-value store:
// an in-process cache of a JSON document mirrored to disk, with optional
// periodic snapshot backups and capacity-bounded snapshot retention.
//
// The package is organised into several files:
//
//	options.go   - configuration struct & functional options
//	store.go     - Store type, write-through and local mutation operations
//	codec.go     - order-preserving JSON object encoding/decoding
//	snapshot.go  - timestamped snapshot writer
//	tracker.go   - FIFO retention bookkeeping over snapshot files
//	scheduler.go - periodic snapshot scheduler
//	registry.go  - path-keyed shared-instance registry
//
// A Store keeps the whole document in memory and rewrites the backing file
// on every write-through mutation. The file is always a UTF-8 JSON object,
// compact or 4-space-indented, with top-level keys in insertion order.
//
// @req RQ-0101
// @design DS-0101
package jsonstore
