package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// otelScope is the instrumentation scope name for bridged log records.
const otelScope = "github.com/fyrsmithlabs/fixd"

// newDualCore creates the local output core and, when enabled, an OTEL core.
// Both sit under one sampler so mirrored output matches local output.
func newDualCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
	}

	out := os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), cfg.Level)

	if cfg.OTEL && otelProvider != nil {
		otelCore := otelzap.NewCore(otelScope,
			otelzap.WithLoggerProvider(otelProvider),
		)
		// Level filtering for the mirror is left to the provider's processors.
		core = zapcore.NewTee(core, otelCore)
	}

	return newSampledCore(core, cfg.Sampling), nil
}
