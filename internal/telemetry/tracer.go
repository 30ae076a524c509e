// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Options controls the exporter.
type Options struct {
	ServiceName string
	Enabled     bool
	Pretty      bool
	Writer      io.Writer // defaults to stdout
}

// InitTracer installs a tracer provider exporting spans to Options.Writer.
// When tracing is disabled the global no-op provider is left in place. The
// returned function flushes and stops the provider.
func InitTracer(opts Options, logger *slog.Logger) (func(context.Context) error, error) {
	if !opts.Enabled {
		logger.Info("OpenTelemetry disabled")
		return func(context.Context) error { return nil }, nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if opts.Pretty {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(opts.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized", slog.String("service", opts.ServiceName))
	return tp.Shutdown, nil
}
