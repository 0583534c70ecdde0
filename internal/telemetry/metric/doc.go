// Package metric wires JsonKeep into prometheus/client_golang.
//
// The Registry bundles the instruments the servers touch directly
// (HTTP latency histograms, operation and snapshot counters, auth and
// RESP command counters) while per-store gauges such as key counts are
// read at scrape time by a custom collector, so they never go stale.
// Everything is served from /metrics on the HTTP listener.
//
// @req RQ-0403
// @design DS-0402
package metric
