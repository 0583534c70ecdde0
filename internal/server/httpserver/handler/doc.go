// Package handler implements the JsonKeep HTTP API: store lifecycle
// and key-value endpoints under /v1/stores, snapshot creation and
// listing, the /v1/admin surface for API keys and server status, and
// the unauthenticated health probes.
//
// Every handler decodes and validates its request, delegates to a
// core service, and renders the shared response envelope; service
// errors map to HTTP status codes through handleServiceError.
//
// @req RQ-0301
// @design DS-0301
package handler
