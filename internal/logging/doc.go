// Package logging provides structured logging for fixd.
//
// The package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Automatic context field injection (trace_id, request id, cwe, language)
//   - Secret redaction by field name and value pattern
//   - Level-aware sampling (errors never sampled)
//
// Create a logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with request context:
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	ctx = logging.WithRemediation(ctx, "CWE-89", "python")
//	logger.Info(ctx, "remediation complete", zap.Int64("latency_ms", ms))
//
// Components that only need a plain *zap.Logger receive Underlying().
// Tests use NewTestLogger, which records every entry in memory.
package logging
