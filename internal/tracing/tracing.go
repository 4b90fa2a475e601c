// Package tracing wires up OpenTelemetry tracing for the simulator. There
// is no collector to ship spans to — the simulator has no network
// dependency by design — so the only exporter is stdouttrace; spans land
// on stdout as JSON, one per slot, which is enough to inspect rule timing
// without standing up infrastructure.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider wraps the tracer provider and the tracer the simulator uses to
// span each slot.
type Provider struct {
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	enabled bool
}

var global = &Provider{enabled: false, tracer: trace.NewNoopTracerProvider().Tracer("")}

// Init sets up span export. If enabled is false, Init leaves the global
// tracer as a no-op and Tracer() calls are free.
func Init(ctx context.Context, enabled bool) error {
	if !enabled {
		global = &Provider{enabled: false, tracer: trace.NewNoopTracerProvider().Tracer("")}
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("novasim"),
		),
	)
	if err != nil {
		return fmt.Errorf("tracing: build resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("tracing: build exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	global = &Provider{
		tp:      tp,
		tracer:  tp.Tracer("novasim"),
		enabled: true,
	}
	return nil
}

// Shutdown flushes and stops the tracer provider. Safe to call even if
// Init was never called or tracing was disabled.
func Shutdown(ctx context.Context) error {
	if global.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return global.tp.Shutdown(ctx)
}

// Tracer returns the global tracer. A no-op tracer when tracing is disabled.
func Tracer() trace.Tracer {
	return global.tracer
}

// Enabled reports whether a real exporter is wired up.
func Enabled() bool {
	return global.enabled
}
