// Package connection provides connection management for the JsonKeep CLI.
//
// This package manages connections to JsonKeep servers:
//
//   - manager.go: Connection state and health verification
//   - http.go: HTTP/HTTPS client with envelope parsing
//
// Authentication uses the X-API-Key-ID and X-API-Key header pair, or a
// bearer token in key_id:key_secret form. HTTPS servers with a private
// CA are supported through an extra trusted certificate.
//
// @design DS-0602
package connection
