package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/fixd/internal/http"

// routeOperations names each registered route. The legacy and versioned fix
// routes share an operation so dashboards can sum them.
var routeOperations = map[string]string{
	"/":           "info",
	"/health":     "health",
	"/stats":      "stats",
	"/metrics":    "metrics",
	"/local_fix":  "fix",
	"/api/v1/fix": "fix",
}

// HTTPMetrics records per-request otel instruments.
type HTTPMetrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	requests metric.Int64Counter
	duration metric.Float64Histogram
	payload  metric.Int64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics creates the instruments on the global meter provider.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &HTTPMetrics{
		meter:  otel.Meter(httpInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *HTTPMetrics) init() {
	var err error

	m.requests, err = m.meter.Int64Counter(
		"fixd.http.requests_total",
		metric.WithDescription("HTTP requests by operation, route and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	// Fix requests wait on generation, so the buckets reach minutes.
	m.duration, err = m.meter.Float64Histogram(
		"fixd.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration by operation, route and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.payload, err = m.meter.Int64Histogram(
		"fixd.http.fix_payload_bytes",
		metric.WithDescription("Request body size of fix requests"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(256, 1024, 4096, 16384, 65536, 262144, 1048576),
	)
	if err != nil {
		m.logger.Warn("failed to create payload histogram", zap.Error(err))
	}

	m.inFlight, err = m.meter.Int64UpDownCounter(
		"fixd.http.in_flight_requests",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create in-flight gauge", zap.Error(err))
	}
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()
			start := time.Now()

			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)

			route := c.Path()
			op := operation(route)
			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("operation", op),
				attribute.String("route", routeLabel(route)),
				attribute.Int("status", statusOf(c, err)),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if op == "fix" && m.payload != nil && req.ContentLength > 0 {
				m.payload.Record(ctx, req.ContentLength, attrs)
			}
			return err
		}
	}
}

// operation maps a matched route to its operation name.
func operation(route string) string {
	if op, ok := routeOperations[route]; ok {
		return op
	}
	return "unmatched"
}

// routeLabel keeps label cardinality bounded: unknown paths collapse into
// one value instead of echoing whatever a client requested.
func routeLabel(route string) string {
	if _, ok := routeOperations[route]; ok {
		return route
	}
	return "unmatched"
}

// statusOf reports the status the client will see. Handlers that return an
// error have not written a response yet; echo's error handler will.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
