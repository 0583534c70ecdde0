// Package benchmark measures JsonKeep hot paths end to end: store
// reads and writes through the service layer, snapshot encoding, and
// API key verification.
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Pass -count=5 and feed the output to benchstat when comparing runs.
package benchmark
