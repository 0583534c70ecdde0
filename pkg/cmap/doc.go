// Package cmap implements a generic sharded map safe for concurrent
// use. Keys hash to one of a power-of-two number of shards, each
// guarded by its own RWMutex, which keeps contention low for hot shared
// state such as per-store operation counters.
//
// Beyond Get/Set/Delete, the map offers atomic read-modify-write
// helpers (GetOrSet, Pop, Upsert) and lock-respecting iteration via
// Range and Keys.
//
// @adr AD-0102
package cmap
