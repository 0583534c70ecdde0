// Package token generates opaque random identifiers and hashes them
// with SHA-256 for at-rest storage. Tokens are base64 RawURL encoded so
// they can appear in headers and query strings unescaped.
//
// JsonKeep uses it for non-password material such as request IDs;
// Argon2id hashing of API key secrets lives in the domain layer.
// Verification is constant-time.
//
// @design DS-0101
package token
