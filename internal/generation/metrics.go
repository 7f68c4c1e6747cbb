package generation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type metrics struct {
	duration metric.Float64Histogram
	calls    metric.Int64Counter
	tokens   metric.Int64Counter
}

func newMetrics(logger *zap.Logger) *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	var err error

	m.duration, err = meter.Float64Histogram(
		"fixd.generation.duration_seconds",
		metric.WithDescription("Duration of model calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		logger.Warn("failed to create generation duration histogram", zap.Error(err))
	}

	m.calls, err = meter.Int64Counter(
		"fixd.generation.calls_total",
		metric.WithDescription("Model calls by model and status"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("failed to create generation calls counter", zap.Error(err))
	}

	m.tokens, err = meter.Int64Counter(
		"fixd.generation.tokens_total",
		metric.WithDescription("Tokens counted by direction (input, output)"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		logger.Warn("failed to create generation tokens counter", zap.Error(err))
	}
	return m
}

func (m *metrics) recordCall(ctx context.Context, model string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("model", model)))
	}
	if m.calls != nil {
		m.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", status),
		))
	}
}

func (m *metrics) recordTokens(ctx context.Context, model string, in, out int) {
	if m.tokens == nil {
		return
	}
	m.tokens.Add(ctx, int64(in), metric.WithAttributes(attribute.String("model", model), attribute.String("direction", "input")))
	m.tokens.Add(ctx, int64(out), metric.WithAttributes(attribute.String("model", model), attribute.String("direction", "output")))
}
