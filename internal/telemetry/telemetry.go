// Package telemetry installs the OpenTelemetry providers that refstress
// exports through.
//
// refbase records its lifecycle counters through the global otel meter, and
// the stress runner opens spans through the global tracer. Both are no-ops
// until Init installs real providers.
package telemetry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Exporter names accepted in Config.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
)

var (
	// ErrNilContext is returned when Init is called without a context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an exporter name this package does
	// not offer.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter type")
)

// Config selects the exporters.
type Config struct {
	ServiceName string `yaml:"service_name"`

	// TraceExporter is one of "otlp", "stdout" or "none".
	TraceExporter string `yaml:"trace_exporter"`

	// MetricExporter is one of "prometheus", "stdout" or "none".
	MetricExporter string `yaml:"metric_exporter"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

// DefaultConfig exports metrics for Prometheus and no traces. The standard
// OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER and OTEL_EXPORTER_OTLP_ENDPOINT
// variables override the defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "refstress",
		TraceExporter:  cmp.Or(os.Getenv("OTEL_TRACES_EXPORTER"), ExporterNone),
		MetricExporter: cmp.Or(os.Getenv("OTEL_METRICS_EXPORTER"), ExporterPrometheus),
		OTLPEndpoint:   cmp.Or(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "localhost:4317"),
		OTLPInsecure:   true,
	}
}

// Validate reports exporter names this package does not offer.
func (c Config) Validate() error {
	var errs []error

	switch c.TraceExporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("%w: trace exporter %q", ErrUnknownExporter, c.TraceExporter))
	}

	switch c.MetricExporter {
	case ExporterNone, ExporterStdout, ExporterPrometheus:
	default:
		errs = append(errs, fmt.Errorf("%w: metric exporter %q", ErrUnknownExporter, c.MetricExporter))
	}

	return errors.Join(errs...)
}

// Providers owns the providers installed by Init. A nil *Providers is valid
// and owns nothing.
type Providers struct {
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
	metrics http.Handler
}

// Init validates cfg and installs the selected providers as the otel globals.
// The caller must Shutdown the result to flush pending telemetry.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	p := &Providers{}

	if cfg.TraceExporter != ExporterNone {
		exporter, err := newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create %s trace exporter: %w", cfg.TraceExporter, err)
		}

		p.tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(p.tracer)
	}

	if cfg.MetricExporter != ExporterNone {
		reader, handler, err := newMetricReader(cfg)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("create %s metric exporter: %w", cfg.MetricExporter, err)
		}

		p.meter = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		)
		p.metrics = handler
		otel.SetMeterProvider(p.meter)
	}

	return p, nil
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.TraceExporter == ExporterStdout {
		return stdouttrace.New()
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

// newMetricReader returns the reader for cfg.MetricExporter and, for
// Prometheus, the handler serving its private registry.
func newMetricReader(cfg Config) (sdkmetric.Reader, http.Handler, error) {
	if cfg.MetricExporter == ExporterStdout {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, err
		}
		return sdkmetric.NewPeriodicReader(exporter), nil, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}
	return exporter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// MetricsHandler serves the Prometheus exposition format, or is nil when the
// Prometheus exporter is not in use.
func (p *Providers) MetricsHandler() http.Handler {
	if p == nil {
		return nil
	}
	return p.metrics
}

// Shutdown flushes and stops every provider p owns.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error
	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}
	if p.meter != nil {
		errs = append(errs, p.meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// LoggerWithTrace tags logger with the IDs of the span carried by ctx.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	logger = cmp.Or(logger, slog.Default())
	if ctx == nil {
		return logger
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return logger.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return logger
}
