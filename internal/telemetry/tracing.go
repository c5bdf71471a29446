package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracingOptions selects the OTLP/HTTP collector.
type TracingOptions struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
}

// SetupTracing installs a global tracer provider exporting over OTLP/HTTP.
//
// Tracing is opt-in: when disabled or without an endpoint a no-op shutdown is
// returned and the global provider is left alone. The shutdown function
// flushes pending spans and should be deferred by the caller.
func SetupTracing(ctx context.Context, opts TracingOptions) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	endpoint := strings.TrimSpace(opts.Endpoint)
	if !opts.Enabled || endpoint == "" {
		return noop, nil
	}

	exporterOpts := []otlptracehttp.Option{}
	if strings.Contains(endpoint, "://") {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpointURL(endpoint))
	} else {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpoint(endpoint))
		if opts.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return noop, fmt.Errorf("telemetry: exporter: %w", err)
	}

	name := opts.ServiceName
	if name == "" {
		name = "formsheet"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return noop, fmt.Errorf("telemetry: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
