// Package redisserver provides a Redis protocol compatible listener for JsonKeep.
//
// This package implements a RESP2 subset using only the Go standard
// library (no third-party RESP server).
//
// Supported commands:
//   - PING, AUTH, QUIT, COMMAND
//   - SELECT
//   - GET, SET, DEL, EXISTS, KEYS, DBSIZE
//   - FLUSHDB, SAVE, BGSAVE, INFO
//
// Redis database indexes map to attached stores named db0, db1, and so
// on. The server binary attaches db0 at startup when the listener is
// enabled; SELECT to an index without an attached store answers the
// usual Redis out-of-range error.
//
// @req RQ-0303
// @design DS-0301
package redisserver
