// Package httpserver runs the primary JsonKeep API on net/http.
//
// The route table lives on the stdlib mux: store lifecycle and
// key-value routes under /v1/stores, snapshots under
// /v1/stores/{store}/snapshots, the admin surface under /v1/admin,
// and the unauthenticated /healthz, /readyz and /metrics probes.
// Requests pass through the middleware chain (request ID, audit
// logging, per-key rate limiting, API key auth) before reaching the
// handler package.
//
// TLS certificates reload on change via the config watcher, and
// Shutdown drains in-flight requests within the configured timeout.
//
// @req RQ-0301
// @design DS-0301
package httpserver
