// Package telemetry sets up OpenTelemetry tracing and metrics and records
// MCP tool calls.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// Provider owns the tracer and meter providers for the process.
type Provider struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	metrics  http.Handler
	shutdown []func(context.Context) error
}

// Init builds providers from cfg and installs them as the otel globals. With
// telemetry disabled both providers are no-ops.
func Init(ctx context.Context, cfg config.TelemetryConfig, service, version string) (*Provider, error) {
	if !cfg.Enabled {
		p := &Provider{
			TracerProvider: tracenoop.NewTracerProvider(),
			MeterProvider:  metricnoop.NewMeterProvider(),
		}
		otel.SetTracerProvider(p.TracerProvider)
		return p, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.version", version),
	)
	p := &Provider{}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	switch strings.ToLower(cfg.Exporter) {
	case ExporterStdout:
		// stdout may carry the stdio transport
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	case ExporterNone, "":
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	p.TracerProvider = tp
	p.shutdown = append(p.shutdown, tp.Shutdown)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if cfg.Metrics {
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))
		p.MeterProvider = mp
		p.shutdown = append(p.shutdown, mp.Shutdown)
		p.metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		otel.SetMeterProvider(mp)
	} else {
		p.MeterProvider = metricnoop.NewMeterProvider()
	}

	slog.Info("OpenTelemetry initialized", "exporter", cfg.Exporter, "metrics", cfg.Metrics)
	return p, nil
}

// MetricsHandler serves Prometheus metrics, or is nil when metrics are off.
func (p *Provider) MetricsHandler() http.Handler {
	return p.metrics
}

func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}
