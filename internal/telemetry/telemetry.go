// Package telemetry sets up the OpenTelemetry trace and meter providers used
// by the search spans and counters.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ErrUnknownExporter is returned for exporter names other than none and
// stdout.
var ErrUnknownExporter = errors.New("unknown exporter")

// Config selects the exporters.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// TraceExporter is "stdout" or "none".
	TraceExporter string
	// MetricExporter is "stdout" or "none".
	MetricExporter string
	// Writer receives exported spans and metrics. Defaults to stderr so
	// reports on stdout stay parseable.
	Writer io.Writer
}

// Init installs the global providers and returns a function that flushes
// and stops them. With both exporters "none" the global no-op providers are
// left in place.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	switch cfg.TraceExporter {
	case "", "none":
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		tp := trace.NewTracerProvider(
			trace.WithBatcher(exporter),
			trace.WithResource(res),
			trace.WithSampler(trace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	default:
		return nil, fmt.Errorf("init tracer: %w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}

	switch cfg.MetricExporter {
	case "", "none":
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		mp := metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		)
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	default:
		_ = shutdown(ctx)
		return nil, fmt.Errorf("init meter: %w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}

	return shutdown, nil
}
