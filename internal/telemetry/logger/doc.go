// Package logger wraps log/slog with JsonKeep's logging conventions:
// JSON or text output, a runtime-adjustable level, and automatic masking
// of API key secrets and other sensitive attribute values.
//
// Request and trace IDs travel through context.Context; L(ctx) returns a
// logger already enriched with whatever IDs the context carries.
//
// @req RQ-0403
// @design DS-0402
package logger
