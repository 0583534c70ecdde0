// Package service carries the JsonKeep business logic between the
// transport layers and storage.
//
// StoreService owns attached stores: attach/detach, key-value access,
// flush, persist, reload, the periodic snapshot scheduler and
// on-demand snapshots. AuthService owns API keys: issuing, rotation,
// validation with per-key rate limits, and a verification cache so hot
// keys skip the Argon2 check.
//
// Both services take their dependencies as interfaces and are safe for
// concurrent use.
//
// @req RQ-0102
// @design DS-0103
package service
