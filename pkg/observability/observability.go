// Package observability sets up OpenTelemetry tracing and metrics.
package observability

import (
	"context"
	"errors"
	"io"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Config selects what to set up
type Config struct {
	ServiceName string
	// Tracing exports spans to TraceOutput when enabled
	Tracing     bool
	TraceOutput io.Writer
	// Registerer receives the otel metrics; nil skips metrics
	Registerer promclient.Registerer
}

// Provider holds the configured providers
type Provider struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
}

// Setup installs the global tracer and meter providers. Call Shutdown on exit.
func Setup(cfg Config) (*Provider, error) {
	// schemaless so the merge never conflicts with the sdk default schema
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	p := &Provider{}

	if cfg.Tracing {
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.TraceOutput != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.TraceOutput))
		}
		exp, err := stdouttrace.New(opts...)
		if err != nil {
			return nil, err
		}
		p.Tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(p.Tracer)
	}

	if cfg.Registerer != nil {
		exp, err := prometheus.New(prometheus.WithRegisterer(cfg.Registerer))
		if err != nil {
			return nil, err
		}
		p.Meter = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exp),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(p.Meter)
	}

	return p, nil
}

// Shutdown flushes and stops the providers
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
