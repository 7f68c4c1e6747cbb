// Package telemetry provides OpenTelemetry instrumentation for fixd.
//
// New installs global TracerProvider and MeterProvider instances that export
// over OTLP (gRPC or HTTP/protobuf). Components obtain tracers and meters
// through otel.Tracer / otel.Meter with their own instrumentation name, so
// they work unchanged when telemetry is disabled (no-op providers).
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Telemetry failures never crash the service. A provider that fails to
// initialize marks the instance degraded and the global no-op remains.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
