// Package shutdown provides graceful shutdown for JsonKeep.
//
// This package handles process termination signals:
//
//   - Signal handling (SIGINT, SIGTERM)
//   - Timeout-based forced shutdown
//   - Named cleanup hook registration
//   - Programmatic shutdown via Trigger
//
// Usage:
//
//	h := shutdown.NewHandler(30*time.Second, log)
//	h.OnShutdown("http", httpServer.Shutdown)
//	h.OnShutdown("stores", func(ctx context.Context) error { return stores.Close() })
//	return h.Wait() // blocks until SIGINT/SIGTERM, runs hooks in reverse
//
// @design DS-0501
package shutdown
